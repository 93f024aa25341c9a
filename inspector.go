package facade

import (
	"github.com/tidwall/gjson"
)

// ArgumentsFromJSON builds an argument bag from the top-level fields of a
// JSON object. Values are converted to their natural Go form: string,
// float64, bool, nil, map[string]any or []any.
//
// Numbers arrive as float64; declare such parameters as float64 or route
// them through ConvertBinder.
func ArgumentsFromJSON(raw []byte) (Arguments, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, ErrInvalidJSON
	}

	args := make(Arguments)
	root.ForEach(func(key, value gjson.Result) bool {
		args[key.String()] = value.Value()
		return true
	})
	return args, nil
}

// ArgumentPath returns the raw JSON value at a gjson path, useful to guards
// and binders that need nested fields without decoding the whole document.
func ArgumentPath(raw []byte, path string) (any, bool) {
	r := gjson.GetBytes(raw, path)
	if !r.Exists() {
		return nil, false
	}
	return r.Value(), true
}
