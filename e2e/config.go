package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerAddr  string `envconfig:"E2E_SERVER_ADDR"`
	TokenSecret string `envconfig:"E2E_TOKEN_SECRET" default:"e2e-secret"`
	// E2E_DEBUG_FRAMES allows dumping every WebSocket frame as it flows
	DebugFrames bool `envconfig:"E2E_DEBUG_FRAMES" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
