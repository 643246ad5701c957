package params

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/samber/lo"
)

var errNullValue = errors.New("null is not allowed")

// Overlay returns a copy of t with the named fields replaced by overrides.
// Keys are wire names (json tags). Values may be any JSON-marshalable Go
// value, including json.RawMessage. A field is replaced wholesale: a list
// override such as style_selections is not merged with the default list.
//
// Keys are applied in sorted order so the first reported error is stable.
// The result must pass Validate.
func (t Template) Overlay(overrides map[string]any) (Template, error) {
	if len(overrides) == 0 {
		return t.Clone(), nil
	}
	base, err := t.fields()
	if err != nil {
		return Template{}, err
	}
	keys := lo.Keys(overrides)
	sort.Strings(keys)
	for _, name := range keys {
		if _, ok := base[name]; !ok {
			return Template{}, &UnknownFieldError{Field: name}
		}
		raw, err := encodeValue(overrides[name])
		if err != nil {
			return Template{}, &FieldTypeError{Field: name, Err: err}
		}
		// Decode the single field on its own so type errors name it.
		var probe Template
		if err := json.Unmarshal(singleField(name, raw), &probe); err != nil {
			return Template{}, &FieldTypeError{Field: name, Err: err}
		}
		base[name] = raw
	}
	b, err := json.Marshal(base)
	if err != nil {
		return Template{}, err
	}
	var out Template
	if err := json.Unmarshal(b, &out); err != nil {
		return Template{}, err
	}
	if err := out.Validate(); err != nil {
		return Template{}, err
	}
	return out, nil
}

// Has reports whether name is a template field.
func Has(name string) bool {
	_, ok := fieldIndex()[name]
	return ok
}

// FieldNames returns the wire names of all template fields, sorted.
func FieldNames() []string {
	names := lo.Keys(fieldIndex())
	sort.Strings(names)
	return names
}

func (t Template) fields() (map[string]json.RawMessage, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeValue(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, errNullValue
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, errNullValue
	}
	return raw, nil
}

func singleField(name string, raw json.RawMessage) []byte {
	key, _ := json.Marshal(name)
	out := make([]byte, 0, len(key)+len(raw)+3)
	out = append(out, '{')
	out = append(out, key...)
	out = append(out, ':')
	out = append(out, raw...)
	return append(out, '}')
}

// fieldSet holds the wire names of all template fields.
var fieldSet = func() map[string]json.RawMessage {
	m, err := Default().fields()
	if err != nil {
		panic(err)
	}
	return m
}()

func fieldIndex() map[string]json.RawMessage { return fieldSet }
