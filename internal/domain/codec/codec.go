// Package codec converts between the persisted JSON text and the in-memory
// document.
//
// The on-disk form is UTF-8 JSON indented with four spaces. Non-ASCII text and
// HTML characters are written literally, and date/time values become ISO-8601
// strings (see entities.FormatTimestamp).
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tofu-suite/tofu/internal/domain/entities"
)

const indent = "    "

// ErrNotObject is returned when the stored JSON is valid but not an object.
var ErrNotObject = errors.New("document root is not a JSON object")

// Encode renders the document for storage.
func Encode(doc *entities.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRaw parses stored bytes into a generic object, keeping numbers as
// json.Number.
func DecodeRaw(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode document: trailing data after root value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}

// DecodeDocument converts a migrated raw object into the typed document.
func DecodeDocument(raw map[string]any) (*entities.Document, error) {
	data, err := compact(raw)
	if err != nil {
		return nil, fmt.Errorf("re-encode raw document: %w", err)
	}
	var doc entities.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc.Normalize()
	return &doc, nil
}

// ToRaw converts a typed document into its generic object form.
func ToRaw(doc *entities.Document) (map[string]any, error) {
	data, err := compact(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return DecodeRaw(data)
}

// compact marshals v without HTML escaping so that embedded raw sections
// keep their text.
func compact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
