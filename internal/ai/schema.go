package ai

import (
	"reflect"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// enumType is implemented by int enums that travel as names.
type enumType interface {
	EnumValues() []string
}

// schemaFor builds the response schema for out, describing enum fields by
// their names rather than their integer representation.
func schemaFor(out any) (*jsonschema.Definition, error) {
	def, err := jsonschema.GenerateSchemaForType(out)
	if err != nil {
		return nil, err
	}
	applyEnums(reflect.TypeOf(out), def)
	return def, nil
}

func applyEnums(t reflect.Type, def *jsonschema.Definition) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if e, ok := reflect.Zero(t).Interface().(enumType); ok {
		def.Type = jsonschema.String
		def.Enum = e.EnumValues()
		return
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		if def.Items != nil {
			applyEnums(t.Elem(), def.Items)
		}
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := jsonName(f)
			if name == "" {
				continue
			}
			prop, ok := def.Properties[name]
			if !ok {
				continue
			}
			applyEnums(f.Type, &prop)
			def.Properties[name] = prop
		}
	}
}

func jsonName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}
