package tokenrelay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dashdevs/sme-finance-core/security"
)

// DefaultExpiryLeeway is how long before its expiry an access token is refreshed.
const DefaultExpiryLeeway = time.Minute

// Supplier produces Authorization header values for outbound calls made on
// behalf of the principal of an inbound request.
//
// Delegated principals get the access token stored for them, refreshed through
// the provider's token endpoint once it is within the expiry leeway. Concurrent
// refreshes for the same (registration, principal) pair are collapsed into a
// single token endpoint call. Supplier is safe for concurrent use.
type Supplier struct {
	store         Store
	registrations Registrations
	refresher     *refresher
	expiryLeeway  time.Duration
	now           func() time.Time
	logger        *zap.Logger
	registerer    prometheus.Registerer
	metrics       *metrics
	flights       singleflight.Group
}

// Option is a functional option for configuring Supplier.
type Option func(*Supplier)

// WithLogger sets the logger for refresh events.
// If not set, no logging will occur.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Supplier) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHTTPClient sets the client used to call provider token endpoints.
// Default is a client with a 30 second timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Supplier) {
		if client != nil {
			s.refresher.httpClient = client
		}
	}
}

// WithExpiryLeeway sets how long before expiry a token is treated as expired.
// Default is one minute.
func WithExpiryLeeway(leeway time.Duration) Option {
	return func(s *Supplier) {
		if leeway >= 0 {
			s.expiryLeeway = leeway
		}
	}
}

// WithClock replaces the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Supplier) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics registers refresh and header counters with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Supplier) {
		s.registerer = reg
	}
}

// NewSupplier creates a Supplier reading authorized clients from store and
// provider registrations from registrations.
//
// Parameters:
//   - store: Authorized-client store shared with the login flow
//   - registrations: Provider registrations referenced by stored clients
//   - opts: Optional configuration (WithLogger, WithHTTPClient, WithExpiryLeeway, WithClock, WithMetrics)
func NewSupplier(store Store, registrations Registrations, opts ...Option) (*Supplier, error) {
	if store == nil {
		return nil, errors.New("tokenrelay: store is required")
	}
	if registrations == nil {
		return nil, errors.New("tokenrelay: registrations are required")
	}

	s := &Supplier{
		store:         store,
		registrations: registrations,
		refresher: &refresher{
			httpClient: &http.Client{Timeout: 30 * time.Second},
		},
		expiryLeeway: DefaultExpiryLeeway,
		now:          time.Now,
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}
	s.refresher.now = s.now

	if s.registerer != nil {
		m, err := newMetrics(s.registerer)
		if err != nil {
			return nil, fmt.Errorf("tokenrelay: failed to register metrics: %w", err)
		}
		s.metrics = m
	}

	return s, nil
}

// AuthorizationHeader returns the Authorization header value for the principal
// held by sc.
//
// The boolean is false, with a nil error, when sc holds no principal. Bearer
// principals relay their own token. Delegated principals relay their stored
// access token, refreshing it first when it is expired. Every failure is an
// *AuthorizationError; when a refresh fails sc is cleared so the rest of the
// request is handled as unauthenticated.
func (s *Supplier) AuthorizationHeader(ctx context.Context, sc *security.Context) (string, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	p, ok := sc.Principal()
	if !ok {
		s.metrics.header(principalNone)
		return "", false, nil
	}

	switch principal := p.(type) {
	case security.Bearer:
		s.metrics.header(principalBearer)
		return bearerHeader(principal.Token), true, nil
	case *security.Bearer:
		if principal == nil {
			break
		}
		s.metrics.header(principalBearer)
		return bearerHeader(principal.Token), true, nil
	case security.Delegated:
		s.metrics.header(principalDelegated)
		return s.delegatedHeader(ctx, sc, principal)
	case *security.Delegated:
		if principal == nil {
			break
		}
		s.metrics.header(principalDelegated)
		return s.delegatedHeader(ctx, sc, *principal)
	}

	s.metrics.header(principalNone)
	return "", false, nil
}

// AuthorizationHeaderFromContext is AuthorizationHeader for the security
// context installed in ctx by security.NewContext.
func (s *Supplier) AuthorizationHeaderFromContext(ctx context.Context) (string, bool, error) {
	sc, ok := security.FromContext(ctx)
	if !ok {
		s.metrics.header(principalNone)
		return "", false, nil
	}
	return s.AuthorizationHeader(ctx, sc)
}

func (s *Supplier) delegatedHeader(ctx context.Context, sc *security.Context, principal security.Delegated) (string, bool, error) {
	client, err := s.store.Load(ctx, principal.RegistrationID, principal.PrincipalName)
	if err != nil {
		return "", false, storeFailure(err)
	}
	if client == nil {
		return "", false, tokenExpired(ErrClientNotFound)
	}
	if client.AccessToken.Value == "" {
		return "", false, nil
	}

	if !s.expired(client.AccessToken) {
		return client.AccessToken.HeaderValue(), true, nil
	}

	s.logger.Info("access token expired, refreshing automatically",
		zap.String("registration", principal.RegistrationID),
		zap.String("principal", principal.PrincipalName),
	)

	refreshed, err := s.getOrRefresh(ctx, principal)
	if err != nil {
		if !errors.Is(err, ErrStoreFailure) {
			sc.Clear()
		}
		return "", false, err
	}

	return refreshed.AccessToken.HeaderValue(), true, nil
}

// getOrRefresh returns a valid authorized client for principal, refreshing it
// at most once across all concurrent callers with the same key.
func (s *Supplier) getOrRefresh(ctx context.Context, principal security.Delegated) (*AuthorizedClient, error) {
	key := principal.RegistrationID + "\x00" + principal.PrincipalName

	// The flight is shared by every waiter, so it must not be cancelled by the
	// first caller's context.
	flightCtx := context.WithoutCancel(ctx)

	result, err, _ := s.flights.Do(key, func() (any, error) {
		// Double-check: a previous flight may have stored a fresh token.
		current, err := s.store.Load(flightCtx, principal.RegistrationID, principal.PrincipalName)
		if err != nil {
			return nil, storeFailure(err)
		}
		if current == nil {
			return nil, tokenExpired(ErrClientNotFound)
		}
		if current.AccessToken.Value != "" && !s.expired(current.AccessToken) {
			return current, nil
		}

		return s.refresh(flightCtx, current, principal)
	})
	if err != nil {
		return nil, err
	}

	return result.(*AuthorizedClient), nil
}

func (s *Supplier) refresh(ctx context.Context, current *AuthorizedClient, principal security.Delegated) (*AuthorizedClient, error) {
	reg, ok := s.registrations.Registration(current.RegistrationID)
	if !ok {
		s.metrics.refresh(current.RegistrationID, outcomeRejected)
		return nil, tokenExpired(fmt.Errorf("%w: %s", ErrUnknownRegistration, current.RegistrationID))
	}
	if current.RefreshToken.Value == "" {
		s.metrics.refresh(reg.ID, outcomeRejected)
		return nil, tokenExpired(ErrNoRefreshToken)
	}

	token, err := s.refresher.exchange(ctx, reg, current.RefreshToken.Value)
	if err != nil {
		s.metrics.refresh(reg.ID, outcomeRejected)
		s.logger.Warn("unable to refresh token",
			zap.String("registration", reg.ID),
			zap.String("principal", principal.PrincipalName),
			zap.Error(err),
		)
		return nil, err
	}
	if token == nil {
		s.metrics.refresh(reg.ID, outcomeNoToken)
		s.logger.Info("failed to refresh token for user",
			zap.String("registration", reg.ID),
			zap.String("principal", principal.PrincipalName),
		)
		return nil, tokenExpired(ErrNoAccessToken)
	}

	scopes := scopesOf(token)
	if len(scopes) == 0 {
		scopes = current.AccessToken.Scopes
	}

	updated := &AuthorizedClient{
		RegistrationID: current.RegistrationID,
		PrincipalName:  current.PrincipalName,
		AccessToken: AccessToken{
			Value:     token.AccessToken,
			Type:      DefaultTokenType,
			IssuedAt:  s.now(),
			ExpiresAt: token.Expiry,
			Scopes:    scopes,
		},
		RefreshToken: current.RefreshToken,
	}
	// Refresh token rotation is optional per provider.
	if token.RefreshToken != "" {
		updated.RefreshToken = RefreshToken{Value: token.RefreshToken}
	}

	if err := s.store.Save(ctx, updated, principal); err != nil {
		s.metrics.refresh(reg.ID, outcomeStoreError)
		return nil, storeFailure(err)
	}

	s.metrics.refresh(reg.ID, outcomeSuccess)
	s.logger.Debug("refreshed access token",
		zap.String("registration", reg.ID),
		zap.String("principal", principal.PrincipalName),
		zap.Time("expires", updated.AccessToken.ExpiresAt),
	)

	return updated, nil
}

// Logout ends the session held by sc. For a delegated principal the stored
// authorized client is removed first, so later requests cannot relay its
// tokens. sc is cleared once the store accepted the removal; a store error is
// returned as an *AuthorizationError wrapping ErrStoreFailure and leaves sc as is.
func (s *Supplier) Logout(ctx context.Context, sc *security.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	p, ok := sc.Principal()
	if !ok {
		return nil
	}

	var delegated *security.Delegated
	switch principal := p.(type) {
	case security.Delegated:
		delegated = &principal
	case *security.Delegated:
		delegated = principal
	}

	if delegated != nil {
		if err := s.store.Remove(ctx, delegated.RegistrationID, delegated.PrincipalName); err != nil {
			return storeFailure(err)
		}
		s.logger.Info("removed authorized client",
			zap.String("registration", delegated.RegistrationID),
			zap.String("principal", delegated.PrincipalName),
		)
	}

	sc.Clear()
	return nil
}

// expired reports whether token is past its expiry minus the leeway. A token
// without an expiry is treated as expired.
func (s *Supplier) expired(token AccessToken) bool {
	if token.ExpiresAt.IsZero() {
		return true
	}
	return s.now().After(token.ExpiresAt.Add(-s.expiryLeeway))
}

func bearerHeader(token string) string {
	return DefaultTokenType + " " + token
}
