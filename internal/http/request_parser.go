package http

// Utilities for parsing request bodies that arrive either as JSON or as
// form-encoded data.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"yesan/internal/core"
	"yesan/internal/services"
)

// maxBodyBytes bounds JSON and form bodies. Receipt uploads have their own
// limit.
const maxBodyBytes = 1 << 20

var errInvalidInput = errors.New("invalid input")

// RequestBodyParser reads a body once and serves its fields whatever the
// encoding.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most limit bytes of r's body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request, limit int64) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
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
	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}
	if body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: malformed json", errInvalidInput)
		}
		return p.err
	}
	p.formData, p.err = url.ParseQuery(body)
	if p.err != nil {
		p.err = fmt.Errorf("%w: malformed form", errInvalidInput)
	}
	return p.err
}

// Has reports whether key was sent at all, even empty.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	_, ok := p.formData[key]
	return ok
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		return sanitizeInput(stringValue(p.jsonData[key]))
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Bool reads a JSON boolean or a form checkbox value.
func (p *RequestBodyParser) Bool(key string) (bool, error) {
	if p.jsonData != nil {
		if b, ok := p.jsonData[key].(bool); ok {
			return b, nil
		}
	}
	switch strings.ToLower(p.Get(key)) {
	case "true", "on", "1", "yes":
		return true, nil
	case "false", "off", "0", "no", "":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s must be a boolean", errInvalidInput, key)
	}
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

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

// Draft reads the editable expense fields. Amounts may be numbers or
// grouped strings like "10,000".
func (p *RequestBodyParser) Draft() (services.Draft, error) {
	date, err := core.ParseDate(p.Get("date"))
	if err != nil {
		return services.Draft{}, err
	}
	return services.Draft{
		Date:        date,
		Category:    p.Get("category"),
		Description: p.Get("description"),
		Amount:      core.ParseAmount(p.Get("amount")),
		Purchaser:   p.Get("purchaser"),
		ReceiptURL:  p.Get("receiptUrl"),
	}, nil
}

// sanitizeInput removes control characters except tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
