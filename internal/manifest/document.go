// Package manifest reads and rewrites npm-style package manifests while
// keeping the original key order, so rewritten files diff cleanly against
// upstream.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"ideforge/internal/fsutil"
)

// ParseError reports a manifest that is not a JSON object.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid manifest: %v", e.Err)
	}
	return fmt.Sprintf("invalid manifest %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Document is a JSON object that remembers key insertion order.
// Values are held as raw JSON and only decoded on access.
type Document struct {
	keys   []string
	values map[string]json.RawMessage
}

// New returns an empty document.
func New() *Document {
	return &Document{values: make(map[string]json.RawMessage)}
}

// Parse decodes data, which must hold a single JSON object.
func Parse(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &ParseError{Err: errors.New("top-level value is not an object")}
	}

	doc := New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, &ParseError{Err: err}
		}
		key, ok := tok.(string)
		if !ok {
			return nil, &ParseError{Err: fmt.Errorf("unexpected token %v", tok)}
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, &ParseError{Err: fmt.Errorf("value for %q: %w", key, err)}
		}
		doc.setRaw(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, &ParseError{Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{Err: errors.New("trailing data after object")}
	}
	return doc, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return doc, nil
}

// Keys returns the keys in document order.
func (d *Document) Keys() []string {
	return append([]string(nil), d.keys...)
}

func (d *Document) Len() int { return len(d.keys) }

func (d *Document) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// Get decodes the value under key into v. It reports false when the key is absent.
func (d *Document) Get(key string, v any) (bool, error) {
	raw, ok := d.values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

// GetString returns the value under key if it is a JSON string.
func (d *Document) GetString(key string) (string, bool) {
	var s string
	ok, err := d.Get(key, &s)
	if !ok || err != nil {
		return "", false
	}
	return s, true
}

// Set stores v under key. An existing key keeps its position; a new key is appended.
func (d *Document) Set(key string, v any) error {
	raw, err := marshalValue(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	d.setRaw(key, raw)
	return nil
}

func (d *Document) setRaw(key string, raw json.RawMessage) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = raw
}

// Delete removes key and reports whether it was present.
func (d *Document) Delete(key string) bool {
	if _, ok := d.values[key]; !ok {
		return false
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
	return true
}

// Object returns the nested object under key as a Document. A missing key
// yields an empty document.
func (d *Document) Object(key string) (*Document, error) {
	raw, ok := d.values[key]
	if !ok {
		return New(), nil
	}
	sub, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", key, err)
	}
	return sub, nil
}

// MarshalJSON encodes the document compactly in key order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalValue(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := json.Compact(&buf, d.values[k]); err != nil {
			return nil, fmt.Errorf("value for %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Encode renders the document with two-space indentation and a trailing newline.
func (d *Document) Encode() ([]byte, error) {
	compact, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Save writes the document to path atomically.
func (d *Document) Save(path string) error {
	data, err := d.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, data, fsutil.FileMode(path, 0644)); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func marshalValue(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
