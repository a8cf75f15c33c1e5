package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one label/value pair scraped off a page.
type Field struct {
	Label string
	Value string
}

// Fields is an insertion-ordered string-to-string mapping. It marshals as a
// JSON object whose key order matches insertion order, which keeps persisted
// partitions byte-stable across merge runs.
type Fields []Field

// Get returns the value stored under label.
func (f Fields) Get(label string) (string, bool) {
	for _, field := range f {
		if field.Label == label {
			return field.Value, true
		}
	}
	return "", false
}

// Set replaces the value under label, appending when absent.
func (f *Fields) Set(label, value string) {
	for i, field := range *f {
		if field.Label == label {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Label: label, Value: value})
}

// MarshalJSON renders the mapping as an object in insertion order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Label)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object preserving its key order.
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields: expected object, got %v", tok)
	}
	out := Fields{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("fields: non-string key %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		if _, isDelim := valTok.(json.Delim); isDelim {
			// Nested structures are not part of the bag contract; drain them
			// so the rest of the object still parses.
			if err := drain(dec); err != nil {
				return err
			}
			out = append(out, Field{Label: key, Value: ""})
			continue
		}
		if valTok == nil {
			out = append(out, Field{Label: key, Value: ""})
			continue
		}
		out = append(out, Field{Label: key, Value: fmt.Sprint(valTok)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*f = out
	return nil
}

// drain consumes tokens until the open delimiter that was just read is closed.
func drain(dec *json.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
