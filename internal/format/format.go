// Package format renders command results for the CLI.
//
// Every renderer goes through the JSON encoding of the value first, so json
// struct tags decide field names in all three formats.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type Format string

const (
	JSON Format = "json"
	EDN  Format = "edn"
	TOML Format = "toml"
)

// Parse accepts json, edn or toml (case-insensitive). Empty means json.
func Parse(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return JSON, nil
	case JSON, EDN, TOML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (expected json|edn|toml)", s)
	}
}

// Write renders v to w in format f.
func Write(w io.Writer, v any, f Format, pretty bool) error {
	switch f {
	case "", JSON:
		return WriteJSON(w, v, pretty)
	case EDN:
		return WriteEDN(w, v, pretty)
	case TOML:
		return WriteTOML(w, v)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

// WriteJSON writes v as a single JSON document followed by a newline.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// generic converts v into maps, slices and scalars via its JSON encoding.
// Numbers stay json.Number so integers are not widened to floats.
func generic(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
