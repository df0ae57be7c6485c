// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package respond

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/retailcms/internal/validation"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is empty")
)

// DecodeJSON reads a JSON body into dst and validates it. Unknown fields are
// rejected. On failure it writes the error response and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := decodeBody(r, dst); err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			Error(w, r, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
				fmt.Sprintf("Request body exceeds %d bytes", MaxBodyBytes), nil)
		default:
			Error(w, r, http.StatusBadRequest, CodeBadRequest, "Invalid JSON body: "+err.Error(), nil)
		}
		return false
	}

	if verr := validation.ValidateStruct(dst); verr != nil {
		Validation(w, r, verr)
		return false
	}
	return true
}

func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errEmptyBody
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) > MaxBodyBytes {
		return errBodyTooLarge
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errEmptyBody
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}
