package config

import (
	"fmt"

	"github.com/marmos91/dittolpd/pkg/adapter"
	lpdadapter "github.com/marmos91/dittolpd/pkg/adapter/lpd"
	"github.com/marmos91/dittolpd/pkg/api"
	"github.com/marmos91/dittolpd/pkg/metrics"
	"github.com/marmos91/dittolpd/pkg/spool"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// Parameters:
//   - cfg: The complete dittolpd configuration
//   - sp: The spool shared by every adapter
//   - lpdMetrics: Optional LPD metrics collector (nil = no metrics)
//
// Returns:
//   - []adapter.Adapter: List of enabled adapters ready to be added to the server
//   - error: Any error during adapter creation
func CreateAdapters(cfg *Config, sp *spool.Spool, lpdMetrics metrics.LPDMetrics) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.LPD.Enabled {
		adapters = append(adapters, lpdadapter.New(cfg.Adapters.LPD, sp, lpdMetrics))
	}

	if cfg.API.Enabled {
		apiServer, err := api.New(api.Config{
			BindAddress:    cfg.API.BindAddress,
			Port:           cfg.API.Port,
			AllowedOrigins: cfg.API.AllowedOrigins,
			Auth: api.AuthConfig{
				Enabled:      cfg.API.Auth.Enabled,
				PasswordHash: cfg.API.Auth.PasswordHash,
				Secret:       cfg.API.Auth.Secret,
				TokenTTL:     cfg.API.Auth.TokenTTL,
			},
		}, sp)
		if err != nil {
			return nil, fmt.Errorf("failed to create API adapter: %w", err)
		}
		adapters = append(adapters, apiServer)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}
