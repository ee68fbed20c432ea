package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const configHeader = `dittolpd Configuration File

Every value can be overridden with an environment variable:
DITTOLPD_<SECTION>_<KEY>, e.g. DITTOLPD_LOGGING_LEVEL=DEBUG`

// sectionComments document the top-level sections of a generated file.
var sectionComments = map[string]string{
	"logging":  "Logging: level (DEBUG, INFO, WARN, ERROR), format (text, json), output (stdout, stderr, file path)",
	"server":   "Server-wide settings and the Prometheus endpoint",
	"content":  "Where job files are stored: filesystem, memory or s3\ns3 options: bucket, region, endpoint, access_key_id, secret_access_key, key_prefix, force_path_style, part_size",
	"jobs":     "Where job records are stored: memory, badger or sqlite",
	"spool":    "Print queues. max_job_size is in bytes, 0 means unlimited",
	"notify":   "Job events: none or redis (JSON messages on a pub/sub channel)",
	"adapters": "LPD listener (RFC 1179)",
	"api":      "Admin REST API. Generate password_hash with 'dittolpd hash-password'",
}

// InitConfig writes the default configuration to the default location.
//
// Returns the path of the written file, or an error if a file already
// exists there and force is false.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes the default configuration to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := RenderConfig(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	// The file may end up holding secrets.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// RenderConfig renders cfg as commented YAML.
func RenderConfig(cfg *Config) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	doc.HeadComment = commentLines(configHeader)

	// Mapping nodes hold keys and values alternately.
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = commentLines(comment)
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func commentLines(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = "#"
		} else {
			lines[i] = "# " + line
		}
	}
	return strings.Join(lines, "\n")
}
