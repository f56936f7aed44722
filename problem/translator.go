package problem

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dashdevs/sme-finance-core/tokenrelay"
	"github.com/dashdevs/sme-finance-core/validation"
)

const (
	detailMessageNotReadable = "Unable to convert http message"
	detailDataAccess         = "Failure during data access"
	detailUnexpected         = "Unexpected runtime exception"
)

// Translator converts errors into problems and writes them as
// application/problem+json responses.
type Translator struct {
	production bool
	logger     *zap.Logger
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithProduction hides error details that may leak internals.
func WithProduction(production bool) TranslatorOption {
	return func(t *Translator) {
		t.production = production
	}
}

// WithLogger sets the logger used for 5xx responses.
func WithLogger(logger *zap.Logger) TranslatorOption {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTranslator creates a Translator. Details are shown unless WithProduction(true) is set.
func NewTranslator(opts ...TranslatorOption) *Translator {
	t := &Translator{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate maps err to a problem for request r. It returns nil for a nil error.
// r may be nil, in which case no path is recorded.
func (t *Translator) Translate(r *http.Request, err error) *Problem {
	if err == nil {
		return nil
	}

	p := t.toProblem(err)
	if p.Status == 0 {
		p.Status = http.StatusInternalServerError
	}
	if p.Type == "" || p.Type == BlankType {
		p.Type = DefaultType
	}
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}
	if r != nil && r.URL != nil {
		p.Path = r.URL.Path
	}
	if p.Message == "" && p.Status != 0 {
		p.Message = "error.http." + strconv.Itoa(p.Status)
	}
	return p
}

// Write translates err and writes the problem to w.
func (t *Translator) Write(w http.ResponseWriter, r *http.Request, err error) {
	p := t.Translate(r, err)
	if p == nil {
		return
	}

	fields := []zap.Field{zap.Int("status", p.Status), zap.Error(err)}
	if r != nil {
		fields = append(fields, zap.String("method", r.Method), zap.String("path", p.Path))
	}
	if p.Status >= http.StatusInternalServerError {
		t.logger.Error("request failed", fields...)
	} else {
		t.logger.Debug("request rejected", fields...)
	}

	writeProblem(w, p)
}

// HandlerFunc is an http handler that reports failures by returning an error.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handler adapts fn to http.Handler, writing returned errors as problems.
func (t *Translator) Handler(fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			t.Write(w, r, err)
		}
	})
}

// Recover converts panics in next into 500 problems with MessageServer.
// http.ErrAbortHandler is re-raised.
func (t *Translator) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}

			t.logger.Error("handler panicked",
				zap.Any("panic", v),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Stack("stack"),
			)
			p := New(http.StatusInternalServerError, "")
			p.Message = MessageServer
			p.Path = r.URL.Path
			writeProblem(w, p)
		}()
		next.ServeHTTP(w, r)
	})
}

func (t *Translator) toProblem(err error) *Problem {
	var p *Problem
	if errors.As(err, &p) {
		c := p.clone()
		if c.cause == nil {
			c.cause = err
		}
		return c
	}

	var paramErr *ParamError
	if errors.As(err, &paramErr) {
		return violationProblem(paramErr).WithCause(err)
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return fieldErrorProblem(verrs).WithCause(err)
	}

	var authErr *tokenrelay.AuthorizationError
	if errors.As(err, &authErr) {
		return New(http.StatusUnauthorized, authErr.Description).WithCause(err)
	}

	if errors.Is(err, ErrConcurrencyFailure) {
		p := New(http.StatusConflict, "")
		p.Message = MessageConcurrencyFailure
		return p.WithCause(err)
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return New(http.StatusRequestEntityTooLarge, err.Error()).WithCause(err)
	}

	status := http.StatusInternalServerError
	if isNotReadable(err) {
		status = http.StatusBadRequest
	}
	return New(status, t.detail(err)).WithCause(err)
}

func (t *Translator) detail(err error) string {
	if !t.production {
		return err.Error()
	}
	switch {
	case isNotReadable(err):
		return detailMessageNotReadable
	case isDataAccess(err):
		return detailDataAccess
	case containsPackageName(err.Error()):
		return detailUnexpected
	}
	return err.Error()
}

func fieldErrorProblem(verrs validator.ValidationErrors) *Problem {
	p := &Problem{
		Type:    ConstraintViolationType,
		Title:   "Method argument not valid",
		Status:  http.StatusBadRequest,
		Message: MessageValidation,
	}
	for _, fe := range verrs {
		p.FieldErrors = append(p.FieldErrors, FieldError{
			ObjectName: validation.ObjectName(fe),
			Field:      fe.Field(),
			Message:    validation.Message(fe),
		})
	}
	return p
}

func violationProblem(paramErr *ParamError) *Problem {
	p := &Problem{
		Type:    ConstraintViolationType,
		Title:   "Constraint Violation",
		Status:  http.StatusBadRequest,
		Message: MessageValidation,
	}

	var verrs validator.ValidationErrors
	if errors.As(paramErr.Err, &verrs) {
		for _, fe := range verrs {
			field := paramErr.Name
			if fe.Field() != "" {
				field += "." + fe.Field()
			}
			p.Violations = append(p.Violations, Violation{Field: field, Message: validation.Message(fe)})
		}
	} else {
		p.Violations = []Violation{{Field: paramErr.Name, Message: paramErr.Err.Error()}}
	}
	return p
}

func isNotReadable(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.Is(err, ErrMessageNotReadable) ||
		errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr)
}

func isDataAccess(err error) bool {
	var pgErr *pgconn.PgError
	var connectErr *pgconn.ConnectError
	var redisErr redis.Error
	return errors.Is(err, pgx.ErrNoRows) ||
		errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, tokenrelay.ErrStoreFailure) ||
		errors.As(err, &pgErr) ||
		errors.As(err, &connectErr) ||
		errors.As(err, &redisErr)
}

var packageMarkers = []string{
	"github.com/", "golang.org/", "google.golang.org/", "gopkg.in/", "go.uber.org/",
	"runtime error", "reflect.", "strconv.", "net/http", "encoding/", ".go:",
}

func containsPackageName(msg string) bool {
	for _, m := range packageMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func writeProblem(w http.ResponseWriter, p *Problem) {
	body, err := json.Marshal(p)
	if err != nil {
		body = []byte(fmt.Sprintf(`{"type":%q,"title":%q,"status":%d}`, DefaultType, http.StatusText(p.Status), p.Status))
	}

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(p.Status)
	_, _ = w.Write(body)
}
