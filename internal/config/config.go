// Package config loads client and server settings from defaults, an
// optional yaml file, and PEERVIEW_* environment variables, in that
// order of precedence (env wins).
package config

import (
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/viper"
)

type Config struct {
	// SignalingURL is the websocket endpoint of the signaling server.
	SignalingURL string `mapstructure:"signaling_url"`

	// AnalysisURL is the base URL of the analysis service.
	AnalysisURL string `mapstructure:"analysis_url"`

	// Mode is "debug" or "release"; affects server logging.
	Mode string `mapstructure:"mode"`

	// Port is the listen port for the serve command.
	Port int `mapstructure:"port"`

	// STUNServers are STUN urls handed to the peer connection.
	STUNServers []string `mapstructure:"stun_servers"`

	// TURN is optional relay fallback.
	TURNServer   string `mapstructure:"turn_server"`
	TURNUsername string `mapstructure:"turn_username"`
	TURNPassword string `mapstructure:"turn_password"`
}

// Load reads configuration. A missing config file is fine; defaults and
// the environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("peerview")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/peerview")
	}

	v.SetEnvPrefix("peerview")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("signaling_url", "ws://localhost:8080/ws")
	v.SetDefault("analysis_url", "http://localhost:8000")
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("stun_servers", []string{"stun:stun.l.google.com:19302"})

	if err := v.ReadInConfig(); err != nil {
		// Only a broken file is fatal; absence falls back to defaults.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// ICEServers builds the pion ICE server list from the configured STUN and
// optional TURN entries.
func (c *Config) ICEServers() []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(c.STUNServers)+1)
	for _, url := range c.STUNServers {
		servers = append(servers, webrtc.ICEServer{URLs: []string{url}})
	}
	if c.TURNServer != "" {
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{c.TURNServer},
			Username:   c.TURNUsername,
			Credential: c.TURNPassword,
		})
	}
	return servers
}
