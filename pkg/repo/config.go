package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/odvcencio/mdv/pkg/object"
)

// Config stores repository-local settings: the default commit author and
// named remotes used by pull and push.
type Config struct {
	User    UserConfig        `toml:"user"`
	Remotes map[string]string `toml:"remotes,omitempty"`
}

// UserConfig identifies the person committing.
type UserConfig struct {
	Name string `toml:"name,omitempty"`
}

func (r *Repo) configPath() string {
	return filepath.Join(r.MdvDir, "config.toml")
}

// ReadConfig reads .mdv/config.toml. Missing config returns an empty config.
func (r *Repo) ReadConfig() (*Config, error) {
	data, err := os.ReadFile(r.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Remotes: make(map[string]string)}, nil
		}
		return nil, storageErr("read config", err)
	}
	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("read config: decode: %w", err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]string)
	}
	return &cfg, nil
}

// WriteConfig atomically writes .mdv/config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = &Config{}
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := writeFileAtomic(r.configPath(), buf.Bytes(), 0o644); err != nil {
		return storageErr("write config", err)
	}
	return nil
}

// SetRemote stores/updates a named remote location in repository config.
func (r *Repo) SetRemote(name, location string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("set remote: remote name is required")
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return fmt.Errorf("set remote: remote location is required")
	}

	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	cfg.Remotes[name] = location
	return r.WriteConfig(cfg)
}

// RemoteURL returns the configured location for the given remote name.
func (r *Repo) RemoteURL(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("remote name is required")
	}

	cfg, err := r.ReadConfig()
	if err != nil {
		return "", err
	}
	loc, ok := cfg.Remotes[name]
	if !ok || strings.TrimSpace(loc) == "" {
		return "", fmt.Errorf("remote %q is not configured", name)
	}
	return loc, nil
}

// SetUserName stores the default commit author.
func (r *Repo) SetUserName(name string) error {
	name = strings.TrimSpace(name)
	if err := object.ValidateAuthor(name); err != nil {
		return fmt.Errorf("set user name: %w", err)
	}
	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	cfg.User.Name = name
	return r.WriteConfig(cfg)
}

// DefaultAuthor returns the configured user name, then $USER, then
// "unknown".
func (r *Repo) DefaultAuthor() string {
	if cfg, err := r.ReadConfig(); err == nil && cfg.User.Name != "" {
		return cfg.User.Name
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}
