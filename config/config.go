// Package config loads the service configuration from a YAML file with
// ETHID_* environment variable overrides.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const envPrefix = "ETHID_"

// Config is the full service configuration.
type Config struct {
	Env struct {
		Name  string `koanf:"name"`
		Debug bool   `koanf:"debug"`
	} `koanf:"env"`

	HTTP struct {
		Addr string `koanf:"addr"`
	} `koanf:"http"`

	// Redis connection URL. Empty selects the in-memory store and disables
	// event publishing; fine for a single instance, not for replicas.
	Redis struct {
		URL string `koanf:"url"`
	} `koanf:"redis"`

	Auth struct {
		// CallbackURL is the canonical callback endpoint embedded in every
		// challenge. Signed challenges addressed anywhere else are
		// rejected.
		CallbackURL string        `koanf:"callbackurl"`
		SessionTTL  time.Duration `koanf:"sessionttl"`

		// SessionKeyFile is a PEM-encoded EC private key for session
		// tokens. Empty generates an ephemeral key, which invalidates all
		// sessions on restart.
		SessionKeyFile string `koanf:"sessionkeyfile"`
	} `koanf:"auth"`

	Goodwill struct {
		// Mode is "open" (approve everyone) or "ledger" (require received
		// transactions summing to at least Minimum).
		Mode    string `koanf:"mode"`
		Minimum string `koanf:"minimum"`
	} `koanf:"goodwill"`

	QR struct {
		Size  int    `koanf:"size"`
		Level string `koanf:"level"`
	} `koanf:"qr"`
}

// Load reads the configuration from the given YAML file (skipped when the
// path is empty or the file does not exist) and applies ETHID_* environment
// overrides, e.g. ETHID_REDIS_URL or ETHID_AUTH_CALLBACKURL.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, errors.Wrapf(err, "read config %s failed", path)
			}
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			return strings.ReplaceAll(key, "_", "."), value
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config failed")
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Env.Name == "" {
		c.Env.Name = "development"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":9000"
	}
	if c.Auth.CallbackURL == "" {
		c.Auth.CallbackURL = "http://localhost:9000/callback"
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 24 * time.Hour
	}
	if c.Goodwill.Mode == "" {
		c.Goodwill.Mode = "open"
	}
	if c.Goodwill.Minimum == "" {
		c.Goodwill.Minimum = "0"
	}
	if c.QR.Size == 0 {
		c.QR.Size = 256
	}
	if c.QR.Level == "" {
		c.QR.Level = "M"
	}
}
