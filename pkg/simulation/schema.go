package simulation

import (
	_ "embed"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed config.schema.json
var configSchemaSource string

const configSchemaURL = "config.schema.json"

var configSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString(configSchemaURL, configSchemaSource)
})

// ConfigSchema returns the JSON schema config files are validated against.
func ConfigSchema() string {
	return configSchemaSource
}
