//go:build e2e

package e2e

import (
	"testing"
)

// runOnAllConfigs is a helper that runs a test on all configurations
func runOnAllConfigs(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()

	configs := AllConfigurations()

	if CheckLocalstackAvailable(t) {
		helper := NewLocalstackHelper(t)
		defer helper.Cleanup()
		for _, cfg := range S3Configurations() {
			SetupS3Config(t, cfg, helper)
			configs = append(configs, cfg)
		}
	} else {
		t.Log("Localstack not available, skipping S3 configurations")
	}

	for _, cfg := range configs {
		t.Run(cfg.Name, func(t *testing.T) {
			tc := NewTestContext(t, cfg)
			defer tc.Cleanup()

			testFunc(t, tc)
		})
	}
}
