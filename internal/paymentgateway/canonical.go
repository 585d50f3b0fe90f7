package paymentgateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TokenField carries the request signature and never takes part in it.
const TokenField = "Token"

// Fields is a decoded gateway payload. Numbers are kept as json.Number so
// amounts never pass through floating point.
type Fields map[string]any

type CanonicalOptions struct {
	// ScalarsOnly skips nested objects and arrays at the top level instead of
	// rendering them as compact JSON.
	ScalarsOnly bool
}

// DecodeFields parses a JSON object body.
func DecodeFields(data []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var f Fields
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("payload is not a JSON object")
	}
	return f, nil
}

// ToFields converts a struct or map into its JSON object form.
func ToFields(v any) (Fields, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	if bytes.Equal(data, []byte("null")) {
		return Fields{}, nil
	}
	return DecodeFields(data)
}

// Canonical renders v into the string the signature is computed over.
// Keys are sorted at every level, nil values are skipped and the Token
// field is dropped wherever it appears.
func Canonical(v any, opts CanonicalOptions) (string, error) {
	fields, err := ToFields(v)
	if err != nil {
		return "", err
	}

	var (
		b        strings.Builder
		rendered int
	)
	for _, key := range sortedKeys(fields) {
		value := fields[key]
		if key == TokenField || value == nil {
			continue
		}
		switch value.(type) {
		case map[string]any, []any:
			if opts.ScalarsOnly {
				continue
			}
		}

		s, err := renderValue(value)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", key, err)
		}
		b.WriteString(s)
		rendered++
	}

	if rendered == 0 {
		return "{}", nil
	}
	return b.String(), nil
}

func renderValue(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	case map[string]any, []any:
		var buf bytes.Buffer
		if err := writeCompact(&buf, t); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func writeCompact(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		return writeString(buf, t)
	case json.Number:
		buf.WriteString(t.String())
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case map[string]any:
		buf.WriteByte('{')
		first := true
		for _, key := range sortedKeys(t) {
			value := t[key]
			if key == TokenField || value == nil {
				continue
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			if err := writeString(buf, key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCompact(buf, value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCompact(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns a field as text. Numbers are rendered verbatim.
func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func (f Fields) Int64(key string) (int64, bool) {
	switch v := f[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func (f Fields) Bool(key string) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
