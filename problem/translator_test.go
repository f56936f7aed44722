package problem_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dashdevs/sme-finance-core/problem"
	"github.com/dashdevs/sme-finance-core/tokenrelay"
	"github.com/dashdevs/sme-finance-core/validation"
)

type transferRequest struct {
	Amount   int64  `json:"amount" validate:"gt=0"`
	Currency string `json:"currency" validate:"required,currency_code"`
}

func decodeErr(t *testing.T, body string) error {
	t.Helper()
	var req transferRequest
	err := json.Unmarshal([]byte(body), &req)
	require.Error(t, err)
	return err
}

func TestTranslate(t *testing.T) {
	validationErr := validation.New().Struct(transferRequest{Amount: 0, Currency: "EUR"})
	require.Error(t, validationErr)

	unreadable := decodeErr(t, `{"amount": "ten"}`)
	paramErr := problem.InvalidParam("currency", validation.New().Var("EURO", validation.CurrencyCodeTag))

	tests := []struct {
		name       string
		err        error
		production bool
		want       *problem.Problem
	}{
		{
			name: "problem passthrough",
			err:  fmt.Errorf("find account: %w", problem.NotFoundAlert("account", 7)),
			want: &problem.Problem{
				Type:    problem.DefaultType,
				Title:   "Not found",
				Status:  http.StatusNotFound,
				Detail:  "account=7 doesn't exist",
				Path:    "/api/accounts/7",
				Message: "error.http.404",
			},
		},
		{
			name: "blank type replaced and message kept",
			err:  &problem.Problem{Type: problem.BlankType, Status: http.StatusTeapot, Message: "error.teapot"},
			want: &problem.Problem{
				Type:    problem.DefaultType,
				Title:   "I'm a teapot",
				Status:  http.StatusTeapot,
				Path:    "/api/accounts/7",
				Message: "error.teapot",
			},
		},
		{
			name: "field errors",
			err:  validationErr,
			want: &problem.Problem{
				Type:    problem.ConstraintViolationType,
				Title:   "Method argument not valid",
				Status:  http.StatusBadRequest,
				Path:    "/api/accounts/7",
				Message: problem.MessageValidation,
				FieldErrors: []problem.FieldError{
					{ObjectName: "transferRequest", Field: "amount", Message: "must be greater than 0"},
					{ObjectName: "transferRequest", Field: "currency", Message: validation.CurrencyCodeMessage},
				},
			},
		},
		{
			name: "parameter violations",
			err:  paramErr,
			want: &problem.Problem{
				Type:       problem.ConstraintViolationType,
				Title:      "Constraint Violation",
				Status:     http.StatusBadRequest,
				Path:       "/api/accounts/7",
				Message:    problem.MessageValidation,
				Violations: []problem.Violation{{Field: "currency", Message: validation.CurrencyCodeMessage}},
			},
		},
		{
			name: "parameter error without validator",
			err:  problem.InvalidParam("page", errors.New("not a number")),
			want: &problem.Problem{
				Type:       problem.ConstraintViolationType,
				Title:      "Constraint Violation",
				Status:     http.StatusBadRequest,
				Path:       "/api/accounts/7",
				Message:    problem.MessageValidation,
				Violations: []problem.Violation{{Field: "page", Message: "not a number"}},
			},
		},
		{
			name: "token relay failure",
			err: fmt.Errorf("call ledger: %w", &tokenrelay.AuthorizationError{
				Code:        tokenrelay.ErrorCodeAccessDenied,
				Description: tokenrelay.DescriptionTokenExpired,
				Err:         tokenrelay.ErrNoRefreshToken,
			}),
			production: true,
			want: &problem.Problem{
				Type:    problem.DefaultType,
				Title:   "Unauthorized",
				Status:  http.StatusUnauthorized,
				Detail:  tokenrelay.DescriptionTokenExpired,
				Path:    "/api/accounts/7",
				Message: "error.http.401",
			},
		},
		{
			name: "concurrency failure",
			err:  fmt.Errorf("update account: %w", problem.ErrConcurrencyFailure),
			want: &problem.Problem{
				Type:    problem.DefaultType,
				Title:   "Conflict",
				Status:  http.StatusConflict,
				Path:    "/api/accounts/7",
				Message: problem.MessageConcurrencyFailure,
			},
		},
		{
			name: "unreadable body",
			err:  unreadable,
			want: &problem.Problem{
				Type:    problem.DefaultType,
				Title:   "Bad Request",
				Status:  http.StatusBadRequest,
				Detail:  unreadable.Error(),
				Path:    "/api/accounts/7",
				Message: "error.http.400",
			},
		},
		{
			name:       "unreadable body in production",
			err:        problem.NotReadable(errors.New("unexpected EOF")),
			production: true,
			want: &problem.Problem{
				Type:    problem.DefaultType,
				Title:   "Bad Request",
				Status:  http.StatusBadRequest,
				Detail:  "Unable to convert http message",
				Path:    "/api/accounts/7",
				Message: "error.http.400",
			},
		},
		{
			name: "request too large",
			err:  &http.MaxBytesError{Limit: 1024},
			want: &problem.Problem{
				Type:    problem.DefaultType,
				Title:   "Request Entity Too Large",
				Status:  http.StatusRequestEntityTooLarge,
				Detail:  "http: request body too large",
				Path:    "/api/accounts/7",
				Message: "error.http.413",
			},
		},
		{
			name: "unknown error",
			err:  errors.New("ledger offline"),
			want: &problem.Problem{
				Type:    problem.DefaultType,
				Title:   "Internal Server Error",
				Status:  http.StatusInternalServerError,
				Detail:  "ledger offline",
				Path:    "/api/accounts/7",
				Message: "error.http.500",
			},
		},
		{
			name:       "data access in production",
			err:        fmt.Errorf("load account: %w", &pgconn.PgError{Code: "23505", Message: "duplicate key"}),
			production: true,
			want: &problem.Problem{
				Type:    problem.DefaultType,
				Title:   "Internal Server Error",
				Status:  http.StatusInternalServerError,
				Detail:  "Failure during data access",
				Path:    "/api/accounts/7",
				Message: "error.http.500",
			},
		},
		{
			name:       "no rows in production",
			err:        pgx.ErrNoRows,
			production: true,
			want: &problem.Problem{
				Type:    problem.DefaultType,
				Title:   "Internal Server Error",
				Status:  http.StatusInternalServerError,
				Detail:  "Failure during data access",
				Path:    "/api/accounts/7",
				Message: "error.http.500",
			},
		},
		{
			name:       "package name in production",
			err:        errors.New("github.com/dashdevs/ledger.(*Client).Post: nil map"),
			production: true,
			want: &problem.Problem{
				Type:    problem.DefaultType,
				Title:   "Internal Server Error",
				Status:  http.StatusInternalServerError,
				Detail:  "Unexpected runtime exception",
				Path:    "/api/accounts/7",
				Message: "error.http.500",
			},
		},
		{
			name:       "plain message in production",
			err:        errors.New("ledger offline"),
			production: true,
			want: &problem.Problem{
				Type:    problem.DefaultType,
				Title:   "Internal Server Error",
				Status:  http.StatusInternalServerError,
				Detail:  "ledger offline",
				Path:    "/api/accounts/7",
				Message: "error.http.500",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			translator := problem.NewTranslator(problem.WithProduction(tt.production))
			r := httptest.NewRequest(http.MethodGet, "/api/accounts/7?expand=owner", nil)

			got := translator.Translate(r, tt.err)
			require.NotNil(t, got)
			assert.NotNil(t, errors.Unwrap(got), "cause is kept")

			// Compare serialized forms; the cause is not part of the problem body.
			want, err := json.Marshal(tt.want)
			require.NoError(t, err)
			body, err := json.Marshal(got)
			require.NoError(t, err)
			assert.JSONEq(t, string(want), string(body))
		})
	}
}

func TestTranslateNil(t *testing.T) {
	translator := problem.NewTranslator()
	assert.Nil(t, translator.Translate(nil, nil))

	got := translator.Translate(nil, problem.BadRequestAlert("x"))
	assert.Empty(t, got.Path)
}

func TestTranslateDoesNotMutateReturnedProblem(t *testing.T) {
	p := problem.BadRequestAlert("x")
	got := problem.NewTranslator().Translate(httptest.NewRequest(http.MethodGet, "/a", nil), p)

	assert.Equal(t, "/a", got.Path)
	assert.Empty(t, p.Path)
	assert.Empty(t, p.Message)
}

func TestWrite(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	translator := problem.NewTranslator(problem.WithLogger(zap.New(core)))

	rec := httptest.NewRecorder()
	translator.Write(rec, httptest.NewRequest(http.MethodPost, "/api/transfers", nil), errors.New("ledger offline"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, problem.ContentType, rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"type": "https://www.finance.sem.com/error",
		"title": "Internal Server Error",
		"status": 500,
		"detail": "ledger offline",
		"path": "/api/transfers",
		"message": "error.http.500"
	}`, rec.Body.String())

	rec = httptest.NewRecorder()
	translator.Write(rec, httptest.NewRequest(http.MethodGet, "/api/accounts/1", nil), problem.NotFoundAlert("account", 1))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "/api/transfers", entries[0].ContextMap()["path"])
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)

	rec = httptest.NewRecorder()
	translator.Write(rec, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestHandler(t *testing.T) {
	translator := problem.NewTranslator()
	h := translator.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if r.URL.Query().Get("fail") != "" {
			return problem.BadRequestAlert("fail requested")
		}
		_, err := w.Write([]byte("ok"))
		return err
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?fail=1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"detail":"fail requested"`)
}

func TestRecover(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	translator := problem.NewTranslator(problem.WithLogger(zap.New(core)))

	h := translator.Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		var m map[string]int
		m["boom"]++
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(strings.NewReader(rec.Body.String())).Decode(&body))
	assert.Equal(t, problem.MessageServer, body["message"])
	assert.Equal(t, "/api/panic", body["path"])
	assert.NotContains(t, body, "detail")
	assert.Equal(t, 1, logs.FilterMessage("handler panicked").Len())

	aborting := translator.Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		aborting.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
