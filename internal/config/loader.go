package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned by ResolveConfigPath when no candidate
// file exists.
var ErrConfigNotFound = errors.New("config file not found")

// envRef matches "$$" or a ${VAR} / ${VAR:-default} reference.
var envRef = regexp.MustCompile(`\$\$|\$\{([^}:]+)(:-([^}]*))?\}`)

// Loader decodes YAML documents into a CatalogConfig laid over
// DefaultConfig.
type Loader struct {
	lookupEnv func(string) (string, bool)
	strict    bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithStrictFields rejects fields the configuration does not define.
func WithStrictFields() LoaderOption {
	return func(l *Loader) { l.strict = true }
}

// WithEnvLookup replaces os.LookupEnv for variable references.
func WithEnvLookup(fn func(string) (string, bool)) LoaderOption {
	return func(l *Loader) { l.lookupEnv = fn }
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadConfig reads the file at path with a default Loader.
func LoadConfig(path string) (*CatalogConfig, error) {
	return NewLoader().Load(path)
}

// LoadConfigFromReader decodes r with a default Loader.
func LoadConfigFromReader(r io.Reader) (*CatalogConfig, error) {
	return NewLoader().LoadFromReader(r)
}

func (l *Loader) Load(path string) (*CatalogConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return l.decode(data)
}

func (l *Loader) LoadFromReader(r io.Reader) (*CatalogConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return l.decode(data)
}

// decode expands variable references, then decodes over DefaultConfig so
// absent fields keep their defaults. A document without content yields
// the defaults.
func (l *Loader) decode(data []byte) (*CatalogConfig, error) {
	cfg := DefaultConfig()
	doc := l.substituteEnvVars(string(data))
	if strings.TrimSpace(doc) == "" {
		return cfg, nil
	}

	dec := yaml.NewDecoder(strings.NewReader(doc))
	dec.KnownFields(l.strict)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// substituteEnvVars expands ${VAR} and ${VAR:-default}. "$$" is a literal
// dollar sign, so "$${VAR}" survives as "${VAR}". An unset variable
// without a default expands to "".
func (l *Loader) substituteEnvVars(content string) string {
	var out bytes.Buffer
	last := 0
	for _, m := range envRef.FindAllStringSubmatchIndex(content, -1) {
		out.WriteString(content[last:m[0]])
		last = m[1]

		if m[2] < 0 {
			out.WriteByte('$')
			continue
		}
		if v, ok := l.lookupEnv(content[m[2]:m[3]]); ok {
			out.WriteString(v)
		} else if m[6] >= 0 {
			out.WriteString(content[m[6]:m[7]])
		}
	}
	out.WriteString(content[last:])
	return out.String()
}

// ResolveConfigPath returns the absolute path of the configuration file.
// A relative path is looked up in the working directory, then ./configs,
// then /etc/ordcatalog.
func ResolveConfigPath(path string) (string, error) {
	candidates := []string{path}
	if !filepath.IsAbs(path) {
		candidates = append(candidates,
			filepath.Join("configs", path),
			filepath.Join(string(filepath.Separator), "etc", "ordcatalog", path),
		)
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return filepath.Abs(candidate)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrConfigNotFound, path)
}
