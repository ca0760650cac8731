package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// SupportedSchemaVersionConstraint is the major schema version this build reads.
const SupportedSchemaVersionConstraint = "v1"

// Load parses and validates a configuration document: schema check, strict
// decode, schema version check, then logical validation. All logical
// problems are reported together.
func Load(documentYAML []byte, filePathHint string) (*Config, error) {
	if len(bytes.TrimSpace(documentYAML)) == 0 {
		return nil, reductoerrors.NewConfigError("configuration content cannot be empty", nil)
	}

	if err := ValidateWithSchema(documentYAML); err != nil {
		return nil, reductoerrors.NewConfigError(fmt.Sprintf("configuration '%s' failed schema validation", filePathHint), err)
	}

	var cfg Config
	if err := yamlUnmarshalStrict(documentYAML, &cfg); err != nil {
		return nil, reductoerrors.NewConfigError(fmt.Sprintf("failed to parse configuration YAML '%s'", filePathHint), err)
	}
	cfg.FilePath = filePathHint

	if err := checkSchemaVersion(cfg.SchemaVersion, filePathHint); err != nil {
		return nil, err
	}

	if errs := Validate(&cfg); len(errs) > 0 {
		messages := make([]string, 0, len(errs))
		for _, e := range errs {
			messages = append(messages, e.Error())
		}
		combined := fmt.Sprintf("configuration '%s' has %d validation error(s):\n- %s",
			filePathHint, len(messages), strings.Join(messages, "\n- "))
		return nil, reductoerrors.NewValidationError(combined, errs[0])
	}
	return &cfg, nil
}

// LoadFromFile reads and loads a configuration file.
func LoadFromFile(filePath string) (*Config, error) {
	if filePath == "" {
		return nil, reductoerrors.NewConfigError("configuration file path cannot be empty", nil)
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, reductoerrors.NewConfigError(fmt.Sprintf("failed to get absolute path for '%s'", filePath), err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, reductoerrors.NewConfigError(fmt.Sprintf("failed to read configuration file '%s'", absPath), err)
	}
	return Load(data, absPath)
}

func checkSchemaVersion(version, filePathHint string) error {
	if version == "" {
		return reductoerrors.NewValidationError(fmt.Sprintf("configuration '%s' is missing required 'schemaVersion' field", filePathHint), nil)
	}
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return reductoerrors.NewValidationError(fmt.Sprintf("configuration '%s' has invalid 'schemaVersion' format: '%s'", filePathHint, version), nil)
	}
	if semver.Major(v) != SupportedSchemaVersionConstraint {
		return reductoerrors.NewValidationError(
			fmt.Sprintf("configuration '%s' schemaVersion '%s' is not compatible with required '%s'",
				filePathHint, version, SupportedSchemaVersionConstraint), nil)
	}
	return nil
}

// yamlUnmarshalStrict rejects fields that Config does not define.
func yamlUnmarshalStrict(in []byte, out interface{}) error {
	decoder := yaml.NewDecoder(bytes.NewReader(in))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("YAML parsing error: %w", err)
	}
	return nil
}
