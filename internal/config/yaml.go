package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in "." and $HOME/.cabinet.
const DefaultFileName = "cabinet.yaml"

// keyComments are attached to the keys of the generated file.
var keyComments = map[string]string{
	"server":                 "HTTP listener",
	"env":                    "\"production\" enables HSTS, CSP, secure cookies and strict checks (NODE_ENV)",
	"frontend_url":           "Allowed CORS origin in production (FRONTEND_URL)",
	"cors_origins":           "Overrides the CORS allow list when not empty",
	"trust_proxy":            "Read the client address from X-Forwarded-For / X-Real-IP",
	"static_dir":             "Built front end served for non-API paths",
	"auth":                   "Session tokens and the admin identity",
	"jwt_secret":             "At least 32 bytes in production (JWT_SECRET)",
	"admin_initial_password": "Generated and printed once when empty (ADMIN_INITIAL_PASSWORD)",
	"csrf":                   "Double-submit CSRF cookie",
	"secret":                 "Cookie signing key; random per process when empty (CSRF_SECRET)",
	"rate_limit":             "Per-address budgets over a rolling window",
	"storage":                "json, markdown, sqlite or memory",
	"content_dir":            "Markdown driver only; defaults to <data_dir>/content/blog",
	"blog":                   "Defaults applied to new posts",
	"logging":                "level: debug, info, warn, error (empty: debug in development); format: text or json",
	"mcp":                    "cabinet mcp: transport stdio or http",
}

// DefaultConfig returns the configuration produced by the defaults alone.
func DefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	if err != nil {
		panic(fmt.Sprintf("config: defaults do not load: %v", err))
	}
	return cfg
}

// MarshalYAML renders cfg as a commented YAML document. Durations and sizes
// use their human readable forms so the output loads back unchanged.
func MarshalYAML(cfg *Config) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return nil, err
	}
	annotate(&doc)
	doc.HeadComment = "cabinet configuration\nEvery key can be overridden with CABINET_<SECTION>_<KEY>."

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func annotate(n *yaml.Node) {
	if n.Kind != yaml.MappingNode {
		for _, c := range n.Content {
			annotate(c)
		}
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if c, ok := keyComments[key.Value]; ok {
			key.HeadComment = c
		}
		if key.Value == "max_body_size" && val.Kind == yaml.ScalarNode {
			var size uint64
			if err := val.Decode(&size); err == nil {
				val.Value = humanize.IBytes(size)
				val.Tag = "!!str"
			}
		}
		annotate(val)
	}
}

// WriteDefaultFile writes the default configuration to path. An existing
// file is kept unless force is set.
func WriteDefaultFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	cfg := DefaultConfig()
	cfg.Logging.Level = ""
	data, err := MarshalYAML(cfg)
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	// The file may later hold secrets.
	return os.WriteFile(path, data, 0o600)
}
