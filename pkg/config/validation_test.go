package config

import (
	"strings"
	"testing"
)

func TestValidate_DefaultConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Fatalf("Expected default config to be valid, got: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "TRACE" },
			wantErr: "Level",
		},
		{
			name:    "unknown content store",
			mutate:  func(c *Config) { c.Content.Type = "tape" },
			wantErr: "Type",
		},
		{
			name:    "unknown job store",
			mutate:  func(c *Config) { c.Jobs.Type = "postgres" },
			wantErr: "Type",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = 0 },
			wantErr: "ShutdownTimeout",
		},
		{
			name: "queue name with whitespace",
			mutate: func(c *Config) {
				c.Spool.Queues = []QueueConfig{{Name: "my queue"}}
			},
			wantErr: "queuename",
		},
		{
			name: "empty queue name",
			mutate: func(c *Config) {
				c.Spool.Queues = []QueueConfig{{Name: ""}}
			},
			wantErr: "required",
		},
		{
			name: "duplicate queue",
			mutate: func(c *Config) {
				c.Spool.Queues = []QueueConfig{{Name: "lp"}, {Name: "lp"}}
			},
			wantErr: "duplicate queue name",
		},
		{
			name: "no queues",
			mutate: func(c *Config) {
				c.Spool.Queues = nil
				c.Spool.AcceptUnknownQueues = false
			},
			wantErr: "no queues configured",
		},
		{
			name:    "negative job size",
			mutate:  func(c *Config) { c.Spool.MaxJobSize = -1 },
			wantErr: "MaxJobSize",
		},
		{
			name: "nothing enabled",
			mutate: func(c *Config) {
				c.Adapters.LPD.Enabled = false
				c.API.Enabled = false
			},
			wantErr: "at least one",
		},
		{
			name:    "LPD port out of range",
			mutate:  func(c *Config) { c.Adapters.LPD.Port = 70000 },
			wantErr: "Port",
		},
		{
			name: "API and LPD on the same port",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = c.Adapters.LPD.Port
			},
			wantErr: "already used by adapters.lpd",
		},
		{
			name: "metrics and API on the same port",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.Server.Metrics.Enabled = true
				c.Server.Metrics.Port = c.API.Port
			},
			wantErr: "already used by api",
		},
		{
			name: "auth without secret",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Auth.Enabled = true
				c.API.Auth.PasswordHash = "$2a$10$abcdefghijklmnopqrstuv"
			},
			wantErr: "secret is required",
		},
		{
			name: "auth with plain password",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Auth.Enabled = true
				c.API.Auth.Secret = "s3cret"
				c.API.Auth.PasswordHash = "hunter2"
			},
			wantErr: "bcrypt",
		},
		{
			name:    "redis without url",
			mutate:  func(c *Config) { c.Notify.Type = "redis" },
			wantErr: "url is required",
		},
		{
			name:    "unknown notifier",
			mutate:  func(c *Config) { c.Notify.Type = "kafka" },
			wantErr: "Type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_Accepts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "lowercase log level",
			mutate: func(c *Config) { c.Logging.Level = "debug" },
		},
		{
			name: "only unknown queues",
			mutate: func(c *Config) {
				c.Spool.Queues = nil
				c.Spool.AcceptUnknownQueues = true
			},
		},
		{
			name: "API only",
			mutate: func(c *Config) {
				c.Adapters.LPD.Enabled = false
				c.API.Enabled = true
			},
		},
		{
			name: "disabled listeners may share a port",
			mutate: func(c *Config) {
				c.API.Port = c.Adapters.LPD.Port
				c.Server.Metrics.Port = c.Adapters.LPD.Port
			},
		},
		{
			name: "auth with bcrypt hash",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Auth.Enabled = true
				c.API.Auth.Secret = "s3cret"
				c.API.Auth.PasswordHash = "$2a$10$abcdefghijklmnopqrstuv"
			},
		},
		{
			name: "redis with url",
			mutate: func(c *Config) {
				c.Notify.Type = "redis"
				c.Notify.Redis.URL = "redis://localhost:6379"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			if err := Validate(cfg); err != nil {
				t.Errorf("Expected config to be valid, got: %v", err)
			}
		})
	}
}
