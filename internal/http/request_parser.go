// Package http provides the JSON API of the chore board.
//
// This file implements utilities for parsing and validating request bodies.
// Clients may send JSON objects or form-encoded data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"choreboard/internal/core"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 64 << 10

var ErrInvalidBody = errors.New("invalid request body")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = fmt.Errorf("%w: larger than %d bytes", ErrInvalidBody, maxBodyBytes)
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: %v", ErrInvalidBody, err)
			return p.err
		}
		return nil
	}

	// Fall back to form parsing
	form, err := url.ParseQuery(trimmed)
	if err != nil {
		p.err = fmt.Errorf("%w: %v", ErrInvalidBody, err)
		return p.err
	}
	p.formData = form
	return nil
}

// Has reports whether the key was present in the body, even if empty.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		v, ok := p.jsonData[key]
		return ok && v != nil
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Amount parses a non-negative decimal amount. Both "2.5" and 2.5 are
// accepted from JSON.
func (p *RequestBodyParser) Amount(key string) (core.Amount, error) {
	a, err := core.ParseAmount(p.Get(key))
	if err != nil {
		return core.Amount{}, fmt.Errorf("%w: %s: %v", ErrInvalidBody, key, err)
	}
	return a, nil
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
