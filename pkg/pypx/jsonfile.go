package pypx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/afero"
)

// LoadSingle reads a metadata file whose payload is wrapped in a single-member
// object keyed by an arbitrary string ({"anything": {...record...}}), validates
// the payload against schema (nil skips validation) and decodes it into T.
//
// Errors:
//   - ErrNotFound if the file does not exist
//   - ErrIO for any other read failure
//   - ErrMalformed for invalid JSON, a wrapper with zero or several members,
//     a schema violation or a payload that does not decode into T
func LoadSingle[T any](fsys afero.Fs, path string, schema *jsonschema.Schema) (T, error) {
	var zero T

	doc, err := readJSON(fsys, path)
	if err != nil {
		return zero, err
	}

	wrapper, ok := doc.(map[string]any)
	if !ok {
		return zero, Malformed(path, "top-level value is not an object", nil)
	}
	if len(wrapper) != 1 {
		return zero, Malformed(path, fmt.Sprintf("expected a single-member object, found %d members", len(wrapper)), nil)
	}

	var payload any
	for _, v := range wrapper {
		payload = v
	}

	return decodeRecord[T](path, payload, schema)
}

// LoadPlain is LoadSingle for files that are not wrapped.
func LoadPlain[T any](fsys afero.Fs, path string, schema *jsonschema.Schema) (T, error) {
	var zero T

	doc, err := readJSON(fsys, path)
	if err != nil {
		return zero, err
	}

	return decodeRecord[T](path, doc, schema)
}

func readJSON(fsys afero.Fs, path string) (any, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, FromOpenError(path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, Malformed(path, "invalid JSON", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, Malformed(path, "trailing data after JSON document", nil)
	}

	return doc, nil
}

func decodeRecord[T any](path string, payload any, schema *jsonschema.Schema) (T, error) {
	var out T

	if schema != nil {
		if err := schema.Validate(payload); err != nil {
			return out, Malformed(path, "schema validation failed", err)
		}
	}

	if _, ok := payload.(map[string]any); !ok {
		return out, Malformed(path, "record is not an object", nil)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return out, Runtime(path, "creating record decoder", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return out, Malformed(path, "record has the wrong shape", err)
	}

	return out, nil
}
