package digest

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Canonicalize encodes v as canonical JSON: object keys sorted, strings NFC
// normalised, nil values dropped from objects. Floats are rejected because their
// textual form is not stable across encoders.
func Canonicalize(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := write(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func write(buf *bytes.Buffer, v any) error {
	switch value := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		return writeString(buf, value)
	case bool:
		buf.WriteString(strconv.FormatBool(value))
	case int:
		buf.WriteString(strconv.Itoa(value))
	case int64:
		buf.WriteString(strconv.FormatInt(value, 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(value), 10))
	case json.Number:
		if strings.ContainsAny(value.String(), ".eE") {
			return ErrFloatNotAllowed
		}
		n, err := strconv.ParseInt(value.String(), 10, 64)
		if err != nil {
			return ErrFloatNotAllowed
		}
		buf.WriteString(strconv.FormatInt(n, 10))
	case float32, float64:
		return ErrFloatNotAllowed
	case []string:
		items := make([]any, len(value))
		for i, s := range value {
			items[i] = s
		}
		return writeSlice(buf, items)
	case []any:
		return writeSlice(buf, value)
	case map[string]string:
		obj := make(map[string]any, len(value))
		for k, s := range value {
			obj[k] = s
		}
		return writeMap(buf, obj)
	case map[string]int:
		obj := make(map[string]any, len(value))
		for k, n := range value {
			obj[k] = n
		}
		return writeMap(buf, obj)
	case map[string]any:
		return writeMap(buf, value)
	default:
		return ErrUnsupportedType
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	encoded, err := json.Marshal(norm.NFC.String(s))
	if err != nil {
		return err
	}
	buf.Write(encoded)
	return nil
}

func writeMap(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	normalized := make(map[string]any, len(obj))
	for key, val := range obj {
		k := norm.NFC.String(key)
		if _, ok := normalized[k]; ok {
			return ErrKeyCollision
		}
		normalized[k] = val
		if val == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := write(buf, normalized[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeSlice(buf *bytes.Buffer, items []any) error {
	if items == nil {
		buf.WriteString("null")
		return nil
	}
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := write(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}
