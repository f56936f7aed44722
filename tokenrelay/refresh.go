package tokenrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// maxTokenResponseSize bounds how much of a token endpoint reply is read.
const maxTokenResponseSize = 1 << 20

// refresher performs the refresh_token grant against a provider token endpoint.
type refresher struct {
	httpClient *http.Client
	now        func() time.Time
}

// exchange redeems refreshToken at the registration's token endpoint.
//
// It returns (nil, nil) when the provider answers successfully but without an
// access token. Transport failures and rejected grants are returned as
// *AuthorizationError.
func (r *refresher) exchange(ctx context.Context, reg Registration, refreshToken string) (*oauth2.Token, error) {
	req, err := r.newRefreshRequest(ctx, reg, refreshToken)
	if err != nil {
		return nil, tokenExpired(err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, tokenExpired(fmt.Errorf("tokenrelay: refresh request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return nil, tokenExpired(fmt.Errorf("tokenrelay: failed to read token response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, tokenExpired(newRetrieveError(resp, body))
	}

	token, err := r.decodeTokenResponse(resp.Header.Get("Content-Type"), body)
	if err != nil {
		return nil, tokenExpired(err)
	}
	return token, nil
}

func (r *refresher) newRefreshRequest(ctx context.Context, reg Registration, refreshToken string) (*http.Request, error) {
	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("refresh_token", refreshToken)
	values.Set("client_id", reg.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reg.TokenURI, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("tokenrelay: failed to create refresh request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(reg.ClientID, reg.ClientSecret)

	return req, nil
}

// decodeTokenResponse normalizes a provider reply into an oauth2.Token.
// Every field of the reply stays reachable through Token.Extra.
func (r *refresher) decodeTokenResponse(contentType string, body []byte) (*oauth2.Token, error) {
	raw, err := decodeTokenFields(contentType, body)
	if err != nil {
		return nil, err
	}

	accessToken := stringField(raw, "access_token")
	if accessToken == "" {
		return nil, nil
	}

	token := &oauth2.Token{
		AccessToken:  accessToken,
		TokenType:    stringField(raw, "token_type"),
		RefreshToken: stringField(raw, "refresh_token"),
	}

	if expiresIn, ok := intField(raw, "expires_in"); ok && expiresIn > 0 {
		token.Expiry = r.now().Add(time.Duration(expiresIn) * time.Second)
	}

	return token.WithExtra(raw), nil
}

func decodeTokenFields(contentType string, body []byte) (map[string]any, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "text/plain" {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("tokenrelay: failed to decode token response: %w", err)
		}
		raw := make(map[string]any, len(values))
		for key := range values {
			raw[key] = values.Get(key)
		}
		return raw, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("tokenrelay: failed to decode token response: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// newRetrieveError builds an oauth2.RetrieveError from an RFC 6749 error reply.
func newRetrieveError(resp *http.Response, body []byte) *oauth2.RetrieveError {
	retrieveErr := &oauth2.RetrieveError{
		Response: resp,
		Body:     body,
	}

	var reply struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorURI         string `json:"error_uri"`
	}
	if err := json.Unmarshal(body, &reply); err == nil {
		retrieveErr.ErrorCode = reply.Error
		retrieveErr.ErrorDescription = reply.ErrorDescription
		retrieveErr.ErrorURI = reply.ErrorURI
	}

	return retrieveErr
}

// scopesOf returns the scopes granted in a token reply.
func scopesOf(token *oauth2.Token) []string {
	scope, _ := token.Extra("scope").(string)
	return strings.Fields(scope)
}

func stringField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func intField(raw map[string]any, key string) (int64, bool) {
	switch v := raw[key].(type) {
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	case float64:
		return int64(v), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
