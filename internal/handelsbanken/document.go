package handelsbanken

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Document is a decoded JSON response body, passed through unchanged. Value holds
// whatever the body carried: an object, a list, a scalar or nil. Numbers are kept
// as json.Number so large ids keep every digit.
type Document struct {
	Value any
}

// Record is a single opaque entry (account, transaction) inside a Document.
type Record map[string]any

// DecodeDocument decodes a complete JSON body.
func DecodeDocument(body []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Document{}, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Document{}, errors.New("unexpected data after JSON value")
	}
	return Document{Value: v}, nil
}

// MarshalJSON writes Value back out as-is.
func (d Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Value)
}

// UnmarshalJSON decodes any JSON value into Value.
func (d *Document) UnmarshalJSON(data []byte) error {
	doc, err := DecodeDocument(data)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}

// Records returns the list of records in the document. A top-level list is used
// directly; an object contributes the list stored under key, e.g. "accounts".
func (d Document) Records(key string) ([]Record, error) {
	var items []any
	switch v := d.Value.(type) {
	case nil:
		return nil, nil
	case []any:
		items = v
	case map[string]any:
		raw, ok := v[key]
		if !ok {
			return nil, fmt.Errorf("response has no %q field", key)
		}
		if raw == nil {
			return nil, nil
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("response field %q is %T, not a list", key, raw)
		}
		items = list
	default:
		return nil, fmt.Errorf("response is %T, not an object or a list", v)
	}

	out := make([]Record, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is %T, not an object", key, i, item)
		}
		out = append(out, Record(m))
	}
	return out, nil
}
