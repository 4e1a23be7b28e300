package pypx

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBaseURL = "https://pypx.local/schemas/"

// Schemas holds the compiled JSON schemas of the three archive record kinds.
type Schemas struct {
	Study    *jsonschema.Schema
	Series   *jsonschema.Schema
	Instance *jsonschema.Schema
}

var (
	schemas     *Schemas
	schemasErr  error
	schemasOnce sync.Once
)

// LoadSchemas compiles the embedded record schemas once per process.
func LoadSchemas() (*Schemas, error) {
	schemasOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020

		compile := func(name string) *jsonschema.Schema {
			if schemasErr != nil {
				return nil
			}
			data, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				schemasErr = fmt.Errorf("reading schema %s: %w", name, err)
				return nil
			}
			url := schemaBaseURL + name
			if err := c.AddResource(url, strings.NewReader(string(data))); err != nil {
				schemasErr = fmt.Errorf("loading schema %s: %w", name, err)
				return nil
			}
			s, err := c.Compile(url)
			if err != nil {
				schemasErr = fmt.Errorf("compiling schema %s: %w", name, err)
				return nil
			}
			return s
		}

		s := &Schemas{
			Study:    compile("study.schema.json"),
			Series:   compile("series.schema.json"),
			Instance: compile("instance.schema.json"),
		}
		if schemasErr == nil {
			schemas = s
		}
	})
	return schemas, schemasErr
}

// MustLoadSchemas is LoadSchemas for callers where the embedded schemas
// failing to compile is a programming error.
func MustLoadSchemas() *Schemas {
	s, err := LoadSchemas()
	if err != nil {
		panic(err)
	}
	return s
}
