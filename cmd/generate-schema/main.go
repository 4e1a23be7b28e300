// Command generate-schema writes the JSON schema of the configuration file,
// for editor completion and validation of config.yaml.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fnndsc/pypx-dicomweb/pkg/config"
	"github.com/invopop/jsonschema"
)

func main() {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		// Field names come from the mapstructure tags used by the loader
		FieldNameTag: "mapstructure",
	}

	schema := reflector.Reflect(&config.Config{})

	schema.Title = "pypx-dicomweb Configuration"
	schema.Description = "Configuration schema for the pypx DICOMweb server"
	schema.Version = "1.0.0"

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling schema: %v\n", err)
		os.Exit(1)
	}

	outputFile := "config.schema.json"
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	if err := os.WriteFile(outputFile, schemaJSON, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("JSON schema written to %s\n", outputFile)
}
