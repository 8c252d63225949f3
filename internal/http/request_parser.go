// Package http exposes the JSON API.
//
// This file implements request body and query parsing. Malformed optional
// values fall back to defaults instead of rejecting the request.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spendly/internal/core"
	"spendly/internal/services"
)

const maxBodyBytes = 1 << 20

var errBodyTooLarge = core.NewUserError(core.ErrValidation, "Request body too large")

// RequestBodyParser reads a JSON or form-encoded body once and gives typed
// access to its fields.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser reads up to maxBodyBytes of the request body.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse decodes the body. JSON bodies must be objects.
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

	if trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = core.NewUserError(core.ErrValidation, "Invalid request body")
		}
		return p.err
	}
	if trimmed[0] == '[' {
		p.err = core.NewUserError(core.ErrValidation, "Invalid request body")
		return p.err
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	if p.err != nil {
		p.err = core.NewUserError(core.ErrValidation, "Invalid request body")
	}
	return p.err
}

// Has reports whether key was supplied with a non-null value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		v, ok := p.jsonData[key]
		return ok && v != nil
	}
	return p.formData != nil && p.formData.Has(key)
}

// Get returns the trimmed string value of key.
func (p *RequestBodyParser) Get(key string) string {
	return strings.TrimSpace(p.Raw(key))
}

// Raw returns the value of key exactly as sent.
func (p *RequestBodyParser) Raw(key string) string {
	if p.jsonData != nil {
		return stringValue(p.jsonData[key])
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// Money coerces key to an amount. present is false when the key is absent.
// A present but unparseable value yields zero; a number outside the cent
// range is an error.
func (p *RequestBodyParser) Money(key string) (m core.Money, present bool, err error) {
	if !p.Has(key) {
		return core.Money{}, false, nil
	}
	var v any
	if p.jsonData != nil {
		v = p.jsonData[key]
	} else {
		v = p.formData.Get(key)
	}
	m, err = core.CoerceMoney(v)
	if errors.Is(err, core.ErrAmountRange) {
		return core.Money{}, true, err
	}
	return m, true, nil
}

// Date parses key as an expense date. present is false when the key is
// absent or blank.
func (p *RequestBodyParser) Date(key string) (t time.Time, present bool, err error) {
	s := p.Get(key)
	if s == "" {
		return time.Time{}, false, nil
	}
	t, ok := core.ParseExpenseDate(s)
	if !ok {
		return time.Time{}, true, core.NewUserError(core.ErrValidation, "Invalid date")
	}
	return t, true, nil
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

// ParseFilter reads period, startDate, endDate and category from the query.
// Unparseable dates are ignored.
func ParseFilter(query url.Values) core.Filter {
	f := core.Filter{
		Period:   core.Period(strings.TrimSpace(query.Get("period"))),
		Category: strings.TrimSpace(query.Get("category")),
	}
	if t, ok := core.ParseDateBound(query.Get("startDate"), false); ok {
		f.StartDate = &t
	}
	if t, ok := core.ParseDateBound(query.Get("endDate"), true); ok {
		f.EndDate = &t
	}
	return f
}

// ParseListQuery reads the filter plus page and limit. Non-numeric values
// become zero and are defaulted by the report service.
func ParseListQuery(query url.Values) services.ListQuery {
	return services.ListQuery{
		Filter: ParseFilter(query),
		Page:   atoiOrZero(query.Get("page")),
		Limit:  atoiOrZero(query.Get("limit")),
	}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// parseBody parses the request body and reports a client error on failure.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		var ue *core.UserError
		if !errors.As(err, &ue) {
			err = core.NewUserError(core.ErrValidation, "Invalid request body")
		}
		writeError(w, r, "parse_body", err)
		return nil, false
	}
	return p, true
}
