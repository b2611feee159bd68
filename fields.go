package polycrypt

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/zoobzio/sentinel"
)

// tagName is the struct tag FieldsOf reads. The only accepted value is "encrypt".
const tagName = "polycrypt"

func init() {
	sentinel.Tag(tagName)
}

// FieldSpec is an ordered set of top-level field names selected for
// encryption or decryption.
type FieldSpec []string

// NewFieldSpec builds a FieldSpec from names, dropping repeated names after
// their first occurrence. Empty names are rejected.
func NewFieldSpec(names ...string) (FieldSpec, error) {
	spec := make(FieldSpec, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for i, name := range names {
		if name == "" {
			return nil, malformed("field name %d is empty", i)
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		spec = append(spec, name)
	}
	return spec, nil
}

// Contains reports whether name is selected.
func (f FieldSpec) Contains(name string) bool {
	for _, n := range f {
		if n == name {
			return true
		}
	}
	return false
}

// FieldsOf returns the FieldSpec for struct type T: the JSON names of the
// fields tagged `polycrypt:"encrypt"`, in declaration order.
//
//	type Patient struct {
//	    ID    string   `json:"id"`
//	    Notes string   `json:"notes" polycrypt:"encrypt"`
//	    Meds  []string `json:"medications" polycrypt:"encrypt"`
//	}
//
//	fields, _ := polycrypt.FieldsOf[Patient]() // ["notes", "medications"]
func FieldsOf[T any]() (FieldSpec, error) {
	rt := reflect.TypeFor[T]()
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrInvalidTag, rt)
	}

	spec := sentinel.Scan[T]()
	names := make([]string, 0, len(spec.Fields))
	for _, field := range spec.Fields {
		val, ok := field.Tags[tagName]
		if !ok {
			continue
		}
		if val != "encrypt" {
			return nil, fmt.Errorf("%w: %s:%q on field %s", ErrInvalidTag, tagName, val, field.Name)
		}

		name, ok := jsonName(rt.FieldByIndex(field.Index))
		if !ok {
			return nil, fmt.Errorf("%w: field %s is tagged for encryption but not serialized", ErrInvalidTag, field.Name)
		}
		names = append(names, name)
	}

	return NewFieldSpec(names...)
}

// jsonName returns the serialized name of a struct field.
func jsonName(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get("json")
	name, _, _ := strings.Cut(tag, ",")
	switch name {
	case "-":
		return "", false
	case "":
		return sf.Name, true
	default:
		return name, true
	}
}
