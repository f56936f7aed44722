// Package problem renders errors as RFC 7807 problem details.
//
// Handlers return errors; a Translator decides the status, title and detail
// and writes an application/problem+json body:
//
//	translator := problem.NewTranslator(
//	    problem.WithProduction(cfg.Problem.Production),
//	    problem.WithLogger(logger),
//	)
//
//	mux.Handle("/accounts/{id}", translator.Handler(func(w http.ResponseWriter, r *http.Request) error {
//	    account, err := repo.Find(r.Context(), r.PathValue("id"))
//	    if errors.Is(err, pgx.ErrNoRows) {
//	        return problem.NotFoundAlert("account", r.PathValue("id"))
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    return json.NewEncoder(w).Encode(account)
//	}))
//
// # Translation
//
//   - *Problem: written as is.
//   - validator.ValidationErrors: 400 constraint-violation with fieldErrors.
//   - *ParamError: 400 constraint-violation with violations.
//   - *tokenrelay.AuthorizationError: 401.
//   - ErrConcurrencyFailure: 409 with message error.concurrencyFailure.
//   - ErrMessageNotReadable and encoding/json decode errors: 400.
//   - *http.MaxBytesError: 413.
//   - Everything else: 500.
//
// Every problem carries the request path and a "message" key
// (error.http.<status> unless set). In production mode, details of decoding
// failures, data access errors and messages naming Go packages are replaced
// with generic text.
package problem
