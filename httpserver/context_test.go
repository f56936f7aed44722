package httpserver

import (
	"context"
	"testing"
)

func TestWithTokenClaims(t *testing.T) {
	claims := &TokenClaims{Subject: "alice", Scopes: []string{"openid"}}

	ctx := WithTokenClaims(context.Background(), claims)

	got, ok := TokenClaimsFromContext(ctx)
	if !ok {
		t.Fatal("expected claims to be present in context")
	}
	if got != claims {
		t.Error("expected the stored claims to be returned")
	}
	if MustTokenClaimsFromContext(ctx) != claims {
		t.Error("expected MustTokenClaimsFromContext to return the stored claims")
	}
}

func TestTokenClaimsFromContext_NotPresent(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
	}{
		{name: "empty", ctx: context.Background()},
		{name: "wrong type", ctx: context.WithValue(context.Background(), tokenClaimsKey, "not claims")},
		{name: "foreign key", ctx: context.WithValue(context.Background(), "httpserver.token_claims", &TokenClaims{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, ok := TokenClaimsFromContext(tt.ctx)
			if ok || claims != nil {
				t.Errorf("expected no claims, got %v", claims)
			}
		})
	}
}

func TestMustTokenClaimsFromContext_Panic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic when claims are missing")
		}
	}()
	MustTokenClaimsFromContext(context.Background())
}

func TestTokenClaimsPrincipal(t *testing.T) {
	claims := &TokenClaims{
		Subject: "alice",
		Token:   "eyJhbGciOi.alice",
		Raw:     map[string]any{"sub": "alice", "roles": []any{"ROLE_USER"}},
	}

	p := claims.Principal()
	if p.Token != "eyJhbGciOi.alice" {
		t.Errorf("unexpected token %q", p.Token)
	}
	if p.Name() != "alice" {
		t.Errorf("unexpected name %q", p.Name())
	}

	p.Claims["sub"] = "mallory"
	if claims.Raw["sub"] != "alice" {
		t.Error("principal claims must not alias the token claims")
	}
}
