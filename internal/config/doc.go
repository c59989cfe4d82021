// Package config loads, validates and watches the catalog service
// configuration.
//
// Configuration is a YAML document in a Kubernetes-style envelope:
//
//	apiVersion: catalog.ordcatalog.io/v1
//	kind: Catalog
//	metadata:
//	  name: ord-catalog
//	spec:
//	  server:
//	    address: ":8080"
//	  database:
//	    driver: sqlite
//	    dsn: "file:catalog.db"
//
// ${VAR} and ${VAR:-default} references are expanded from the environment
// before parsing; "$$" yields a literal dollar sign. Fields that are not
// present keep the values of DefaultConfig.
//
// Watcher observes the file with fsnotify and delivers validated
// configurations to a callback after a debounce delay. Rewrites that leave
// the content unchanged are skipped.
package config
