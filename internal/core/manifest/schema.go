package manifest

import (
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const topLevelSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["publisher", "id", "version", "name"],
  "properties": {
    "manifestVersion": {"type": "integer"},
    "publisher": {"type": "string", "minLength": 1},
    "id": {"type": "string", "minLength": 1},
    "version": {"type": "string", "pattern": "^[0-9]+(\\.[0-9]+){2,3}$"},
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "public": {"type": "boolean"},
    "galleryFlags": {"type": "array", "items": {"type": "string"}},
    "contributions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "targets": {"type": "array", "items": {"type": "string"}},
          "properties": {"type": "object"}
        }
      }
    },
    "files": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["path"],
        "properties": {
          "path": {"type": "string", "minLength": 1},
          "packagePath": {"type": "string"},
          "contentType": {"type": "string"},
          "addressable": {"type": "boolean"}
        }
      }
    }
  }
}`

const unitSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "name", "version"],
  "definitions": {
    "component": {"type": ["integer", "string"], "pattern": "^[0-9]+$", "minimum": 0}
  },
  "properties": {
    "id": {"type": "string", "pattern": "^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$"},
    "name": {"type": "string", "minLength": 1},
    "friendlyName": {"type": "string"},
    "description": {"type": "string"},
    "version": {
      "type": "object",
      "required": ["Major", "Minor", "Patch"],
      "properties": {
        "Major": {"$ref": "#/definitions/component"},
        "Minor": {"$ref": "#/definitions/component"},
        "Patch": {"$ref": "#/definitions/component"}
      }
    }
  }
}`

var (
	schemasOnce      sync.Once
	compiledTopLevel *jsonschema.Schema
	compiledUnit     *jsonschema.Schema
)

func schemas() (*jsonschema.Schema, *jsonschema.Schema) {
	schemasOnce.Do(func() {
		compiledTopLevel = jsonschema.MustCompileString("https://schemas.extm.dev/manifest.schema.json", topLevelSchema)
		compiledUnit = jsonschema.MustCompileString("https://schemas.extm.dev/task.schema.json", unitSchema)
	})
	return compiledTopLevel, compiledUnit
}

// Problem is one schema violation. Location is a JSON pointer into the
// document; empty means the document root.
type Problem struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

func (p Problem) String() string {
	if p.Location == "" {
		return p.Message
	}
	return p.Location + ": " + p.Message
}

// Validate checks the document against the top-level manifest schema and
// returns the violations, sorted by location.
func (m *Manifest) Validate() []Problem {
	top, _ := schemas()
	return validateRaw(top, m.raw)
}

// Validate checks the document against the unit manifest schema.
func (u *Unit) Validate() []Problem {
	_, unit := schemas()
	return validateRaw(unit, u.raw)
}

// SchemaError reports problems as a KindManifestParse error naming path, or
// nil when there are none.
func SchemaError(path string, problems []Problem) error {
	if len(problems) == 0 {
		return nil
	}
	msgs := make([]string, len(problems))
	for i, p := range problems {
		msgs[i] = p.String()
	}
	return Errorf(KindManifestParse, path, "schema: %s", strings.Join(msgs, "; "))
}

func validateRaw(s *jsonschema.Schema, raw map[string]interface{}) []Problem {
	err := s.Validate(raw)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []Problem{{Message: err.Error()}}
	}
	var problems []Problem
	collectLeaves(ve, &problems)
	sort.SliceStable(problems, func(i, j int) bool {
		return problems[i].Location < problems[j].Location
	})
	return problems
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]Problem) {
	if len(ve.Causes) == 0 {
		*out = append(*out, Problem{Location: ve.InstanceLocation, Message: ve.Message})
		return
	}
	for _, cause := range ve.Causes {
		collectLeaves(cause, out)
	}
}
