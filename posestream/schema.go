package posestream

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const helloSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "protocol_version"],
  "properties": {
    "type": {"const": "HELLO"},
    "protocol_version": {"type": "string"},
    "producer": {"type": "string", "maxLength": 128}
  }
}`

const poseSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "seq"],
  "properties": {
    "type": {"const": "POSE"},
    "seq": {"type": "integer", "minimum": 0},
    "left": {"$ref": "#/$defs/hand"},
    "right": {"$ref": "#/$defs/hand"}
  },
  "$defs": {
    "vec3": {
      "type": "object",
      "required": ["x", "y", "z"],
      "properties": {
        "x": {"type": "number"},
        "y": {"type": "number"},
        "z": {"type": "number"}
      }
    },
    "hand": {
      "type": "object",
      "required": ["position"],
      "properties": {
        "position": {"$ref": "#/$defs/vec3"},
        "pinching": {"type": "boolean"},
        "curled": {"type": "boolean"},
        "wrist": {"$ref": "#/$defs/vec3"}
      }
    }
  }
}`

const landmarksSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "seq"],
  "properties": {
    "type": {"const": "LANDMARKS"},
    "seq": {"type": "integer", "minimum": 0},
    "left": {"$ref": "#/$defs/hand"},
    "right": {"$ref": "#/$defs/hand"}
  },
  "$defs": {
    "landmark": {
      "type": "object",
      "required": ["x", "y"],
      "properties": {
        "x": {"type": "number", "minimum": 0, "maximum": 1},
        "y": {"type": "number", "minimum": 0, "maximum": 1},
        "z": {"type": "number"}
      }
    },
    "hand": {
      "type": "object",
      "required": ["index", "thumb"],
      "properties": {
        "index": {"$ref": "#/$defs/landmark"},
        "thumb": {"$ref": "#/$defs/landmark"},
        "wrist": {"$ref": "#/$defs/landmark"}
      }
    }
  }
}`

// Schemas holds the compiled message schemas.
type Schemas struct {
	hello     *jsonschema.Schema
	pose      *jsonschema.Schema
	landmarks *jsonschema.Schema
}

// CompileSchemas compiles the built-in message schemas.
func CompileSchemas() (*Schemas, error) {
	compile := func(name, src string) (*jsonschema.Schema, error) {
		s, err := jsonschema.CompileString(name, src)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		return s, nil
	}
	var s Schemas
	var err error
	if s.hello, err = compile("hello.schema.json", helloSchema); err != nil {
		return nil, err
	}
	if s.pose, err = compile("pose.schema.json", poseSchema); err != nil {
		return nil, err
	}
	if s.landmarks, err = compile("landmarks.schema.json", landmarksSchema); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks msg against the schema for typ.
func (s *Schemas) Validate(typ string, msg []byte) error {
	var sch *jsonschema.Schema
	switch typ {
	case TypeHello:
		sch = s.hello
	case TypePose:
		sch = s.pose
	case TypeLandmarks:
		sch = s.landmarks
	default:
		return fmt.Errorf("%w: %q", errUnknownType, typ)
	}
	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return fmt.Errorf("decode %s: %w", typ, err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("validate %s: %w", typ, err)
	}
	return nil
}
