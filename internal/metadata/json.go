package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidDocument is returned for metadata that is not a flat JSON object
// of scalar values.
var ErrInvalidDocument = errors.New("metadata: invalid document")

// ParseJSON decodes a metadata document. Nulls are kept as KindNull values so
// that updates can remove keys; callers storing a new document use Compact.
func ParseJSON(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after object", ErrInvalidDocument)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidDocument)
	}

	doc := make(Document, len(raw))
	for k, rv := range raw {
		if k == "" {
			return nil, fmt.Errorf("%w: empty key", ErrInvalidDocument)
		}
		v, err := FromAny(rv)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %w", ErrInvalidDocument, k, err)
		}
		doc[k] = v
	}
	return doc, nil
}

// FromAny converts a value produced by a json.Decoder with UseNumber.
func FromAny(rv any) (Value, error) {
	switch x := rv.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case json.Number:
		return parseNumber(x.String())
	case float64:
		return Float(x), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", rv)
	}
}

func parseNumber(s string) (Value, error) {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, err
	}
	return Float(f), nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.AppendJSON(nil)
}

// AppendJSON appends the JSON encoding of v. Floats always carry a fraction
// or exponent so they read back as floats.
func (v Value) AppendJSON(b []byte) ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return append(b, "null"...), nil
	case KindInt:
		return strconv.AppendInt(b, v.I64, 10), nil
	case KindFloat:
		if math.IsNaN(v.F64) || math.IsInf(v.F64, 0) {
			return nil, fmt.Errorf("metadata: unsupported float %v", v.F64)
		}
		start := len(b)
		format := byte('f')
		if a := math.Abs(v.F64); a != 0 && (a < 1e-5 || a >= 1e16) {
			format = 'e'
		}
		b = strconv.AppendFloat(b, v.F64, format, -1, 64)
		if !bytes.ContainsAny(b[start:], ".eE") {
			b = append(b, ".0"...)
		}
		return b, nil
	case KindString:
		s, err := json.Marshal(v.S)
		if err != nil {
			return nil, err
		}
		return append(b, s...), nil
	case KindBool:
		return strconv.AppendBool(b, v.B), nil
	default:
		return nil, fmt.Errorf("metadata: cannot encode %s value", v.Kind)
	}
}

// MarshalJSON implements json.Marshaler with sorted keys.
func (d Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}

	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			b = append(b, ',')
		}
		ks, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b = append(b, ks...)
		b = append(b, ':')
		if b, err = d[k].AppendJSON(b); err != nil {
			return nil, err
		}
	}
	return append(b, '}'), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = nil
		return nil
	}
	doc, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}
