package models

import (
	"encoding/json"
)

// MarshalJSON writes the envelope and the extras as one flat object.
func (s Setting) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToMap())
}

// UnmarshalJSON reads a flat object, keeping unknown keys in Extra.
func (s *Setting) UnmarshalJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err //nolint:wrapcheck
	}

	parsed, err := FromMap(doc)
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}
