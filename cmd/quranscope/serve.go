package main

import (
	"github.com/FocuswithJustin/QuranScope/internal/api"
	"github.com/FocuswithJustin/QuranScope/internal/config"
)

// ServeCmd starts the HTTP and WebSocket server. Flags override the server
// section of the config.
type ServeCmd struct {
	Port    int    `help:"HTTP server port (default from config)"`
	Watch   bool   `help:"Reload the theme and chapter indexes when they change on disk"`
	TLSCert string `name:"tls-cert" help:"TLS certificate file" type:"path"`
	TLSKey  string `name:"tls-key" help:"TLS private key file" type:"path"`
}

func (c *ServeCmd) Run(app *App) error {
	cfg, err := app.Config()
	if err != nil {
		return err
	}
	src, err := app.Source()
	if err != nil {
		return err
	}
	client, err := cfg.ExplainClient()
	if err != nil {
		return err
	}

	srv, err := api.NewServer(app.Context(), c.serverConfig(cfg), src, api.Options{
		Reader: cfg.Reader(),
		Client: client,
	})
	if err != nil {
		return err
	}
	return srv.Run(app.Context())
}

func (c *ServeCmd) serverConfig(cfg *config.Config) api.Config {
	sc := api.Config{
		Port:              cfg.Server.Port,
		RateLimitRequests: cfg.Server.RateLimit,
		RateLimitBurst:    cfg.Server.RateBurst,
		Auth:              api.AuthConfig{Enabled: cfg.Server.APIKey != "", APIKey: cfg.Server.APIKey},
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		SessionTTL:        cfg.Server.SessionTTL,
	}
	if c.Port > 0 {
		sc.Port = c.Port
	}
	// Only a directory source has files to watch.
	if (c.Watch || cfg.Server.Watch) && cfg.Data.Source == config.SourceDir {
		sc.WatchDir = cfg.Data.Location
	}
	if c.TLSCert != "" || c.TLSKey != "" {
		sc.TLS = api.TLSConfig{Enabled: true, CertFile: c.TLSCert, KeyFile: c.TLSKey}
	}
	return sc
}
