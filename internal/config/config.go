// Package config holds the CLI configuration types and their loader.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Role represents the user's chosen role (host or client).
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleHost || r == RoleClient
}

// Config stores every parameter the CLI needs. Values come from defaults, an
// optional YAML file, PEERLINK_* environment variables and finally CLI flags.
type Config struct {
	Role         Role     `mapstructure:"role"`
	PIN          string   `mapstructure:"pin"`           // Host: PIN required on /ws; empty = generate
	Listen       string   `mapstructure:"listen"`        // Host: signaling server address
	SignalURL    string   `mapstructure:"signal_url"`    // Client: WebSocket URL to connect to
	ICEServers   []string `mapstructure:"ice_servers"`   // STUN/TURN URLs
	ChannelLabel string   `mapstructure:"channel_label"` // label of the chat DataChannel
	NACK         bool     `mapstructure:"nack"`
	Debug        bool     `mapstructure:"debug"`
}

// EnvPrefix is the prefix of environment overrides, e.g. PEERLINK_SIGNAL_URL.
const EnvPrefix = "PEERLINK"

func setDefaults(v *viper.Viper) {
	v.SetDefault("role", "")
	v.SetDefault("pin", "")
	v.SetDefault("listen", "127.0.0.1:0")
	v.SetDefault("signal_url", "")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("channel_label", "chat")
	v.SetDefault("nack", true)
	v.SetDefault("debug", false)
}

// Load builds a Config. A .env file in the working directory is applied to
// the environment first (existing variables win). path may be empty, in which
// case only defaults and the environment are used.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Role != "" && !cfg.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q: must be 'host' or 'client'", cfg.Role)
	}

	return &cfg, nil
}
