// Package cache stores rendered catalog responses so repeated reads of
// the same entity set do not hit the database.
//
// Two backends are available, selected by spec.cache.type:
//
//   - memory: an in-process LRU bounded by maxEntries
//   - redis: a shared cache reached through a redis:// or rediss:// URL
//
// Entries expire after spec.cache.ttl. Every backend is safe for
// concurrent use; operations are traced with OpenTelemetry and exported
// as Prometheus metrics under the ordcatalog_cache subsystem.
//
//	c, err := cache.New(&cfg.Spec.Cache, logger)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
package cache
