package config

import (
	_ "embed"
	"fmt"
	"sync"

	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed reducto_config_v1.json
var schemaV1Bytes []byte

var (
	schemaV1   *gojsonschema.Schema
	schemaOnce sync.Once
	schemaErr  error
)

// loadSchema compiles the embedded schema once.
func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		if len(schemaV1Bytes) == 0 {
			schemaErr = reductoerrors.NewConfigError("embedded schema 'reducto_config_v1.json' is empty", nil)
			return
		}
		schemaV1, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaV1Bytes))
		if schemaErr != nil {
			schemaErr = reductoerrors.NewConfigError("failed to compile embedded schema 'reducto_config_v1.json'", schemaErr)
		}
	})
	return schemaV1, schemaErr
}

// ValidateWithSchema checks a YAML document against the embedded v1 schema.
func ValidateWithSchema(documentYAML []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}

	// gojsonschema wants JSON-like Go values; yaml.v3 decodes mappings into
	// map[string]interface{} which it accepts.
	var doc interface{}
	if err := yaml.Unmarshal(documentYAML, &doc); err != nil {
		return reductoerrors.NewConfigError("failed to parse YAML for schema validation", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return reductoerrors.NewConfigError("schema validation process failed", err)
	}
	if result.Valid() {
		return nil
	}

	msg := "configuration failed JSON schema validation:"
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "(root)" || field == "" {
			field = desc.Context().String()
		}
		msg += fmt.Sprintf("\n  - Field '%s': %s", field, desc.Description())
	}
	return reductoerrors.NewValidationError(msg, nil)
}
