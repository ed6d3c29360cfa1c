package records

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// List-valued fields are stored as canonical JSON text: a nil list is stored as
// SQL NULL, an empty list as "[]", and HTML characters are left unescaped so the
// stored text stays LIKE-searchable.

// EncodeStrings encodes a string list. A nil list yields nil.
func EncodeStrings(list []string) (*string, error) {
	if list == nil {
		return nil, nil
	}
	return encode(list)
}

// DecodeStrings reverses EncodeStrings. A nil input yields a nil list.
func DecodeStrings(text *string) ([]string, error) {
	if text == nil {
		return nil, nil
	}
	out := []string{}
	if err := json.Unmarshal([]byte(*text), &out); err != nil {
		return nil, fmt.Errorf("decode string list: %w", err)
	}
	return out, nil
}

// EncodeEducation encodes education pairs as a list of two-element arrays.
func EncodeEducation(list []Education) (*string, error) {
	if list == nil {
		return nil, nil
	}
	return encode(list)
}

// DecodeEducation reverses EncodeEducation, rejecting entries that are not pairs.
func DecodeEducation(text *string) ([]Education, error) {
	if text == nil {
		return nil, nil
	}
	var raw [][]string
	if err := json.Unmarshal([]byte(*text), &raw); err != nil {
		return nil, fmt.Errorf("decode education list: %w", err)
	}
	out := make([]Education, 0, len(raw))
	for i, entry := range raw {
		if len(entry) != 2 {
			return nil, fmt.Errorf("decode education list: entry %d has %d elements, want 2", i, len(entry))
		}
		out = append(out, Education{entry[0], entry[1]})
	}
	return out, nil
}

func encode(v any) (*string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode list: %w", err)
	}
	s := string(bytes.TrimRight(buf.Bytes(), "\n"))
	return &s, nil
}
