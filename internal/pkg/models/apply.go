package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
)

// Apply merges an update map into a record. Map keys are the document field
// names (the json names of the struct fields); unknown keys and values that
// do not coerce into the target field fail with an InvalidParameterValue
// error and leave the record unchanged.
func Apply(rec interface{}, values map[string]interface{}) error {
	data, err := json.Marshal(values)
	if err != nil {
		return errdefs.NewInvalidParameter("values", err.Error())
	}

	// Decode into a scratch copy first so a partial decode cannot leave the
	// record half mutated.
	scratch := reflect.New(reflect.TypeOf(rec).Elem())
	scratch.Elem().Set(reflect.ValueOf(rec).Elem())

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(scratch.Interface()); err != nil {
		return errdefs.NewInvalidParameter("values", err.Error())
	}

	reflect.ValueOf(rec).Elem().Set(scratch.Elem())
	return nil
}

// CheckImmutable rejects update maps that touch any of the given fields.
func CheckImmutable(values map[string]interface{}, fields ...string) error {
	for _, field := range fields {
		if _, ok := values[field]; ok {
			return errdefs.NewInvalidParameter(field, "field is immutable")
		}
	}
	return nil
}

// FieldNames returns the set of document field names of a record type,
// derived from its json tags.
func FieldNames(prototype interface{}) map[string]struct{} {
	t := reflect.TypeOf(prototype)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	names := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		names[name] = struct{}{}
	}
	return names
}

// FieldValue returns the value of the struct field whose json name matches
// name, or nil when no such field exists.
func FieldValue(rec interface{}, name string) interface{} {
	v := reflect.ValueOf(rec)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		if tag == name {
			return v.Field(i).Interface()
		}
	}
	return nil
}

// Document converts a record into its generic document form, a map of field
// name to value as it is serialized to storage.
func Document(rec interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize record: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to deserialize record: %w", err)
	}
	return doc, nil
}
