// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package models

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// ID is a backend identifier. It decodes from a JSON string or number and
// encodes back to the same kind.
type ID struct {
	value   string
	numeric bool
}

// NewID returns a string ID.
func NewID(s string) ID {
	return ID{value: s}
}

// NewNumericID returns an ID that encodes as a JSON number.
func NewNumericID(n int64) ID {
	return ID{value: strconv.FormatInt(n, 10), numeric: true}
}

// String returns the ID text.
func (id ID) String() string {
	return id.value
}

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.value == "" {
		return []byte("null"), nil
	}
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*id = ID{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		*id = ID{value: s}
		return nil
	default:
		if _, err := strconv.ParseInt(string(b), 10, 64); err != nil {
			return fmt.Errorf("invalid id %s: must be a string or integer", b)
		}
		*id = ID{value: string(b), numeric: true}
		return nil
	}
}
