package minter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Metadata describes a collectible. The proxy only checks that it parses;
// every field is optional and forwarded as-is (absent fields become null).
type Metadata struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	Media         *string `json:"media"`
	MediaHash     *string `json:"media_hash"`
	Copies        *int32  `json:"copies"`
	ExpiresAt     *int64  `json:"expires_at"`
	StartsAt      *int64  `json:"starts_at"`
	Extra         *string `json:"extra"`
	Reference     *string `json:"reference"`
	ReferenceHash *string `json:"reference_hash"`
}

// metadataFields are the exact keys Metadata decodes. Keys differing only in
// case are treated as unknown.
var metadataFields = map[string]bool{
	"title":          true,
	"description":    true,
	"media":          true,
	"media_hash":     true,
	"copies":         true,
	"expires_at":     true,
	"starts_at":      true,
	"extra":          true,
	"reference":      true,
	"reference_hash": true,
}

// ParseMetadata decodes a metadata document. The input must be a single
// JSON object; null, arrays, scalars, mistyped fields, duplicate keys and
// trailing data are rejected with ErrInvalidMetadata. Unknown fields,
// including case variants of known ones, are ignored.
func ParseMetadata(raw string) (*Metadata, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidMetadata)
	}

	fields, err := decodeObject(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	known := make(map[string]json.RawMessage, len(fields))
	for key, value := range fields {
		if metadataFields[key] {
			known[key] = value
		}
	}
	filtered, err := json.Marshal(known)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	var md Metadata
	if err := json.Unmarshal(filtered, &md); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return &md, nil
}

// decodeObject splits a single JSON object into its members by exact key.
// Only whitespace may follow the object.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("expected a JSON object")
	}

	fields := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		if _, dup := fields[key]; dup {
			return nil, fmt.Errorf("duplicate field %q", key)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields[key] = value
	}

	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return nil, fmt.Errorf("unterminated object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after object")
	}
	return fields, nil
}
