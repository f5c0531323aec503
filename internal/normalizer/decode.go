// Package normalizer turns JSON log exports into a filtered, column-projected table.
package normalizer

import (
	"bytes"
	"fmt"

	"github.com/valyala/fastjson"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// DecodeDocument parses raw JSON and returns its log entries.
// A top-level array must hold only objects; a single top-level object counts as one entry.
func DecodeDocument(raw []byte) ([]*fastjson.Object, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	v, err := fastjson.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	switch v.Type() {
	case fastjson.TypeArray:
		arr, _ := v.Array()
		entries := make([]*fastjson.Object, 0, len(arr))

		for i, item := range arr {
			obj, objErr := item.Object()
			if objErr != nil {
				return nil, fmt.Errorf("%w: entry %d is a %s, not an object", ErrDecode, i, item.Type())
			}

			entries = append(entries, obj)
		}

		return entries, nil

	case fastjson.TypeObject:
		obj, _ := v.Object()

		return []*fastjson.Object{obj}, nil

	default:
		return nil, fmt.Errorf("%w: top level is a %s, expected an array of objects", ErrDecode, v.Type())
	}
}

// DecodeVariables turns the value of a variables attribute into a mapping.
// Strings are parsed as JSON objects, objects pass through, and everything else,
// including a string that fails to parse, yields an empty mapping.
func DecodeVariables(v *fastjson.Value) *fastjson.Object {
	if v == nil {
		return &fastjson.Object{}
	}

	switch v.Type() {
	case fastjson.TypeObject:
		obj, _ := v.Object()

		return obj

	case fastjson.TypeString:
		sb, _ := v.StringBytes()

		parsed, err := fastjson.ParseBytes(sb)
		if err != nil {
			return &fastjson.Object{}
		}

		obj, err := parsed.Object()
		if err != nil {
			return &fastjson.Object{}
		}

		return obj

	default:
		return &fastjson.Object{}
	}
}

// visitMembers calls f once per distinct key of obj, in order of first appearance.
// A key that repeats within obj yields its last value, as a JSON decoder building a map would.
func visitMembers(obj *fastjson.Object, f func(key []byte, v *fastjson.Value)) {
	last := make(map[string]*fastjson.Value, obj.Len())
	obj.Visit(func(key []byte, v *fastjson.Value) {
		last[string(key)] = v
	})

	if len(last) == obj.Len() {
		obj.Visit(f)

		return
	}

	obj.Visit(func(key []byte, _ *fastjson.Value) {
		v, ok := last[string(key)]
		if !ok {
			return
		}

		delete(last, string(key))
		f(key, v)
	})
}
