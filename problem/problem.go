package problem

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strconv"
)

// Message keys sent to clients in the "message" member.
const (
	MessageServer             = "error.server"
	MessageValidation         = "error.validation"
	MessageConcurrencyFailure = "error.concurrencyFailure"
)

// ProblemBaseURL prefixes every problem type this package emits.
const ProblemBaseURL = "https://www.finance.sem.com"

// Problem types.
const (
	DefaultType             = ProblemBaseURL + "/error"
	ConstraintViolationType = ProblemBaseURL + "/constraint-violation"

	// BlankType is the RFC 7807 default. Translator replaces it with DefaultType.
	BlankType = "about:blank"
)

// ContentType is the media type of a serialized Problem.
const ContentType = "application/problem+json"

// Type returns a problem type URL below ProblemBaseURL.
func Type(slug string) string {
	return ProblemBaseURL + "/" + slug
}

// FieldError describes one invalid field of a request body.
type FieldError struct {
	ObjectName string `json:"objectName"`
	Field      string `json:"field"`
	Message    string `json:"message"`
}

// Violation describes one invalid request parameter.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Problem is an RFC 7807 problem details object. It implements error so
// handlers can return it directly.
//
// Extensions are serialized as top-level members next to the standard ones
// and never replace them.
type Problem struct {
	Type        string
	Title       string
	Status      int
	Detail      string
	Instance    string
	Path        string
	Message     string
	FieldErrors []FieldError
	Violations  []Violation
	Extensions  map[string]any

	cause error
}

// New returns a problem with DefaultType and the standard title for status.
func New(status int, detail string) *Problem {
	return &Problem{
		Type:   DefaultType,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

// BadRequestAlert is a 400 "Invalid request" problem.
func BadRequestAlert(detail string) *Problem {
	return BadRequestAlertWithType(DefaultType, detail)
}

// BadRequestAlertWithType is BadRequestAlert with a custom problem type.
func BadRequestAlertWithType(problemType, detail string) *Problem {
	return &Problem{
		Type:   problemType,
		Title:  "Invalid request",
		Status: http.StatusBadRequest,
		Detail: detail,
	}
}

// NotFoundAlert is a 404 "Not found" problem for a missing entity.
func NotFoundAlert(entityName string, entityID any) *Problem {
	return NotFoundAlertWithType(DefaultType, fmt.Sprintf("%s=%v doesn't exist", entityName, entityID))
}

// NotFoundAlertWithType is a 404 "Not found" problem with a custom type and detail.
func NotFoundAlertWithType(problemType, detail string) *Problem {
	return &Problem{
		Type:   problemType,
		Title:  "Not found",
		Status: http.StatusNotFound,
		Detail: detail,
	}
}

// Error returns the status, title and detail.
func (p *Problem) Error() string {
	msg := "problem: " + strconv.Itoa(p.Status)
	if p.Title != "" {
		msg += " " + p.Title
	}
	if p.Detail != "" {
		msg += ": " + p.Detail
	}
	return msg
}

// Unwrap returns the cause set with WithCause.
func (p *Problem) Unwrap() error {
	return p.cause
}

// WithCause records the error the problem was derived from. The cause is
// never serialized.
func (p *Problem) WithCause(err error) *Problem {
	p.cause = err
	return p
}

// With sets an extension member.
func (p *Problem) With(key string, value any) *Problem {
	if p.Extensions == nil {
		p.Extensions = make(map[string]any)
	}
	p.Extensions[key] = value
	return p
}

func (p *Problem) clone() *Problem {
	c := *p
	c.FieldErrors = append([]FieldError(nil), p.FieldErrors...)
	c.Violations = append([]Violation(nil), p.Violations...)
	c.Extensions = maps.Clone(p.Extensions)
	return &c
}

var standardMembers = map[string]bool{
	"type":        true,
	"title":       true,
	"status":      true,
	"detail":      true,
	"instance":    true,
	"path":        true,
	"message":     true,
	"fieldErrors": true,
	"violations":  true,
}

// MarshalJSON writes the problem as a flat JSON object.
func (p *Problem) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Extensions)+9)
	for k, v := range p.Extensions {
		if !standardMembers[k] {
			m[k] = v
		}
	}

	put := func(key, value string) {
		if value != "" {
			m[key] = value
		}
	}
	put("type", p.Type)
	put("title", p.Title)
	put("detail", p.Detail)
	put("instance", p.Instance)
	put("path", p.Path)
	put("message", p.Message)
	if p.Status != 0 {
		m["status"] = p.Status
	}
	if len(p.FieldErrors) > 0 {
		m["fieldErrors"] = p.FieldErrors
	}
	if len(p.Violations) > 0 {
		m["violations"] = p.Violations
	}

	return json.Marshal(m)
}

// UnmarshalJSON reads a problem produced by MarshalJSON or by any RFC 7807
// server. Unknown members end up in Extensions.
func (p *Problem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("problem: failed to decode: %w", err)
	}

	var out Problem
	fields := []struct {
		key string
		dst any
	}{
		{"type", &out.Type},
		{"title", &out.Title},
		{"status", &out.Status},
		{"detail", &out.Detail},
		{"instance", &out.Instance},
		{"path", &out.Path},
		{"message", &out.Message},
		{"fieldErrors", &out.FieldErrors},
		{"violations", &out.Violations},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return fmt.Errorf("problem: invalid %q member: %w", f.key, err)
		}
		delete(raw, f.key)
	}

	for k, v := range raw {
		var value any
		if err := json.Unmarshal(v, &value); err != nil {
			return fmt.Errorf("problem: invalid %q member: %w", k, err)
		}
		if out.Extensions == nil {
			out.Extensions = make(map[string]any, len(raw))
		}
		out.Extensions[k] = value
	}

	*p = out
	return nil
}
