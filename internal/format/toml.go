package format

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
)

// WriteTOML writes v as a TOML document. v must encode to a JSON object.
// TOML has no null, so null fields are dropped.
func WriteTOML(w io.Writer, v any) error {
	x, err := generic(v)
	if err != nil {
		return err
	}
	m, ok := x.(map[string]any)
	if !ok {
		return fmt.Errorf("toml output needs an object at the top level, got %T", x)
	}
	b, err := toml.Marshal(tomlValue(m))
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func tomlValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		out := make([]any, 0, len(t))
		for _, x := range t {
			if x != nil {
				out = append(out, tomlValue(x))
			}
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			if x != nil {
				out[k] = tomlValue(x)
			}
		}
		return out
	}
	return v
}
