package httpclient

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dashdevs/sme-finance-core/clientstore"
	"github.com/dashdevs/sme-finance-core/security"
	"github.com/dashdevs/sme-finance-core/testutil"
	"github.com/dashdevs/sme-finance-core/tokenrelay"
)

// newTestSupplier returns a supplier whose store holds a valid token for
// keycloak/alice and an expired one for keycloak/bob without refresh token.
func newTestSupplier(tb testing.TB) *tokenrelay.Supplier {
	tb.Helper()

	idp := testutil.NewMockOAuth2Server(tb, nil)
	store := clientstore.NewMemory()
	ctx := context.Background()

	for _, client := range []*tokenrelay.AuthorizedClient{
		{
			RegistrationID: "keycloak",
			PrincipalName:  "alice",
			AccessToken:    tokenrelay.AccessToken{Value: "alice-token", Type: "Bearer", ExpiresAt: time.Now().Add(time.Hour)},
			RefreshToken:   tokenrelay.RefreshToken{Value: "alice-refresh"},
		},
		{
			RegistrationID: "keycloak",
			PrincipalName:  "bob",
			AccessToken:    tokenrelay.AccessToken{Value: "bob-token", Type: "Bearer", ExpiresAt: time.Now().Add(-time.Hour)},
		},
	} {
		if err := store.Save(ctx, client, nil); err != nil {
			tb.Fatalf("seed store: %v", err)
		}
	}

	supplier, err := tokenrelay.NewSupplier(store,
		tokenrelay.NewStaticRegistrations(tokenrelay.Registration{
			ID:           "keycloak",
			ClientID:     "sme-finance",
			ClientSecret: "secret",
			TokenURI:     idp.TokenURL,
		}),
		tokenrelay.WithHTTPClient(idp.Client()),
	)
	if err != nil {
		tb.Fatalf("NewSupplier: %v", err)
	}

	return supplier
}

func delegatedContext(name string) context.Context {
	return security.NewContext(context.Background(), security.Delegated{RegistrationID: "keycloak", PrincipalName: name})
}

// echoAuthorization answers 200 with the received Authorization header as body.
func echoAuthorization() testutil.RoundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader(req.Header.Get("Authorization"))),
			Request:    req,
		}, nil
	}
}

func readBody(tb testing.TB, resp *http.Response) string {
	tb.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tb.Fatalf("read body: %v", err)
	}
	return string(body)
}
