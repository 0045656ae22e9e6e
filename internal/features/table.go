package features

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/vmihailenco/msgpack/v5"
)

// ConfigError reports a missing or malformed encoder table or layout. The
// service refuses to start on one.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return "encoder config: " + e.Reason + ": " + e.Err.Error()
	}
	return "encoder config: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// FormatFor picks the codec from a file name or blob key.
func FormatFor(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".msgpack", ".mpk":
		return FormatMsgpack
	default:
		return FormatJSON
	}
}

const tableSchemaURL = "schema://encoder-table.json"

const tableSchema = `{
  "type": "object",
  "required": ["airline_encoder", "route_encoder", "distance_stats"],
  "properties": {
    "airline_encoder": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {"type": "integer", "minimum": 0}
    },
    "route_encoder": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {"type": "integer", "minimum": 0}
    },
    "distance_stats": {
      "type": "object",
      "required": ["min_distance", "max_distance"],
      "properties": {
        "min_distance": {"type": "number"},
        "max_distance": {"type": "number"}
      }
    },
    "metadata": {
      "type": "object",
      "properties": {
        "created_at": {"type": "string"},
        "version": {"type": "string"}
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		var doc any
		if schemaErr = json.Unmarshal([]byte(tableSchema), &doc); schemaErr != nil {
			return
		}
		c := jsonschema.NewCompiler()
		if schemaErr = c.AddResource(tableSchemaURL, doc); schemaErr != nil {
			return
		}
		schema, schemaErr = c.Compile(tableSchemaURL)
	})
	return schema, schemaErr
}

// ReadTable decodes and checks a persisted table. Anything short of a usable
// table is a *ConfigError.
func ReadTable(r io.Reader, f Format) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &ConfigError{Reason: "read table", Err: err}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &ConfigError{Reason: "table file is empty"}
	}

	var t Table
	switch f {
	case FormatMsgpack:
		if err := msgpack.Unmarshal(raw, &t); err != nil {
			return nil, &ConfigError{Reason: "decode msgpack table", Err: err}
		}
	default:
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, &ConfigError{Reason: "decode json table", Err: err}
		}
		sch, err := compiledSchema()
		if err != nil {
			return nil, &ConfigError{Reason: "compile table schema", Err: err}
		}
		if err := sch.Validate(doc); err != nil {
			return nil, &ConfigError{Reason: "table does not match schema", Err: err}
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, &ConfigError{Reason: "decode json table", Err: err}
		}
	}
	if err := t.Check(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Check enforces what a loaded table must satisfy before it can serve.
func (t *Table) Check() error {
	if len(t.Airlines) == 0 {
		return &ConfigError{Reason: "airline_encoder is empty"}
	}
	if len(t.Routes) == 0 {
		return &ConfigError{Reason: "route_encoder is empty"}
	}
	for k, v := range t.Airlines {
		if v < 0 {
			return &ConfigError{Reason: fmt.Sprintf("airline %q has negative id %d", k, v)}
		}
	}
	for k, v := range t.Routes {
		if v < 0 {
			return &ConfigError{Reason: fmt.Sprintf("route %q has negative id %d", k, v)}
		}
	}
	if t.Distance.Max < t.Distance.Min {
		return &ConfigError{Reason: fmt.Sprintf("max_distance %g below min_distance %g", t.Distance.Max, t.Distance.Min)}
	}
	return nil
}

var errNilTable = errors.New("nil table")

// Write persists t in the given format.
func (t *Table) Write(w io.Writer, f Format) error {
	if t == nil {
		return errNilTable
	}
	switch f {
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(t)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	}
}
