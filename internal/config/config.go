package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts human-friendly YAML values like "5m" or "1h30m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the static service configuration. Runtime-changeable settings
// (webhook URL, Telegram credentials, PII flag) live in the database config
// table instead.
type Config struct {
	ListenAddr      string   `yaml:"listen_addr"`
	DatabasePath    string   `yaml:"database_path"`
	JWTSecretFile   string   `yaml:"jwt_secret_file"`
	RoleCatalogPath string   `yaml:"role_catalog"`
	SweepInterval   Duration `yaml:"sweep_interval"`
}

func Default() Config {
	return Config{
		ListenAddr:    ":9090",
		DatabasePath:  "data/modpulse.db",
		JWTSecretFile: "data/.sk",
		SweepInterval: Duration(5 * time.Minute),
	}
}

// Load reads the YAML config at path, falling back to defaults when the file
// does not exist.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
