package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("queuename", validateQueueName)
}

// validateQueueName accepts names that fit on an LPD command line: no
// whitespace, no control characters.
func validateQueueName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" {
		return false
	}
	for _, r := range name {
		if r <= ' ' || r == 0x7f {
			return false
		}
	}
	return true
}

// Validate validates the configuration using struct tags and custom rules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	names := make(map[string]bool)
	for i, q := range cfg.Spool.Queues {
		if names[q.Name] {
			return fmt.Errorf("spool.queues[%d]: duplicate queue name %q", i, q.Name)
		}
		names[q.Name] = true
	}

	if len(cfg.Spool.Queues) == 0 && !cfg.Spool.AcceptUnknownQueues {
		return errors.New("spool: no queues configured and accept_unknown_queues is false")
	}

	if !cfg.Adapters.LPD.Enabled && !cfg.API.Enabled {
		return errors.New("adapters: at least one of adapters.lpd or api must be enabled")
	}

	if err := validatePorts(cfg); err != nil {
		return err
	}

	if cfg.API.Enabled && cfg.API.Auth.Enabled {
		if cfg.API.Auth.Secret == "" {
			return errors.New("api.auth: secret is required when auth is enabled")
		}
		if !strings.HasPrefix(cfg.API.Auth.PasswordHash, "$2") {
			return errors.New("api.auth: password_hash must be a bcrypt hash (see 'dittolpd hash-password')")
		}
	}

	if cfg.Notify.Type == "redis" && cfg.Notify.Redis.URL == "" {
		return errors.New("notify.redis: url is required when notify.type is redis")
	}

	return nil
}

// validatePorts rejects two enabled listeners on the same port.
func validatePorts(cfg *Config) error {
	type listener struct {
		name string
		port int
	}
	var listeners []listener
	if cfg.Adapters.LPD.Enabled {
		listeners = append(listeners, listener{"adapters.lpd", cfg.Adapters.LPD.Port})
	}
	if cfg.API.Enabled {
		listeners = append(listeners, listener{"api", cfg.API.Port})
	}
	if cfg.Server.Metrics.Enabled {
		listeners = append(listeners, listener{"server.metrics", cfg.Server.Metrics.Port})
	}

	seen := make(map[int]string)
	for _, l := range listeners {
		if l.port <= 0 {
			continue
		}
		if other, ok := seen[l.port]; ok {
			return fmt.Errorf("%s: port %d already used by %s", l.name, l.port, other)
		}
		seen[l.port] = l.name
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
