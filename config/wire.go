package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/dashdevs/sme-finance-core/clientstore"
	"github.com/dashdevs/sme-finance-core/grpcclient"
	"github.com/dashdevs/sme-finance-core/httpclient"
	"github.com/dashdevs/sme-finance-core/httpserver"
	"github.com/dashdevs/sme-finance-core/logging"
	"github.com/dashdevs/sme-finance-core/problem"
	"github.com/dashdevs/sme-finance-core/tokenrelay"
)

// Logger builds the service logger from env and log.level.
func (c *Config) Logger() (*zap.Logger, error) {
	return logging.New(c.Env, c.Log.Level)
}

// Translator builds the problem translator. Details are hidden when either
// problem.production is set or env is "prod".
func (c *Config) Translator(logger *zap.Logger) *problem.Translator {
	return problem.NewTranslator(
		problem.WithProduction(c.Problem.Production || c.Production()),
		problem.WithLogger(logger),
	)
}

// NewStore opens the configured authorized client store. On success the
// returned close function releases its connections and is non-nil; on error
// both the store and the close function are nil.
func (c *Config) NewStore(ctx context.Context) (tokenrelay.Store, func(), error) {
	switch c.Store.Driver {
	case DriverMemory, "":
		return clientstore.NewMemory(), func() {}, nil

	case DriverRedis:
		var opts []clientstore.RedisOption
		if c.Store.Redis.KeyPrefix != "" {
			opts = append(opts, clientstore.WithKeyPrefix(c.Store.Redis.KeyPrefix))
		}
		if c.Store.Redis.TTL > 0 {
			opts = append(opts, clientstore.WithTTL(c.Store.Redis.TTL))
		}
		store, err := clientstore.NewRedisFromURL(ctx, c.Store.Redis.URL, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("config: %w", err)
		}
		return store, func() { _ = store.Close() }, nil

	case DriverPostgres:
		pool, err := clientstore.Connect(ctx, c.Store.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("config: %w", err)
		}
		if c.Store.Postgres.Migrate {
			if err := clientstore.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("config: %w", err)
			}
		}
		return clientstore.NewPostgres(pool), pool.Close, nil
	}

	return nil, nil, fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
}

// NewSupplier builds a token supplier over store using the configured
// registrations and expiry leeway. opts are applied after the configured ones.
func (c *Config) NewSupplier(store tokenrelay.Store, logger *zap.Logger, registerer prometheus.Registerer, opts ...tokenrelay.Option) (*tokenrelay.Supplier, error) {
	regs, err := c.Registrations()
	if err != nil {
		return nil, err
	}

	base := []tokenrelay.Option{
		tokenrelay.WithExpiryLeeway(c.OAuth2.ExpiryLeeway),
		tokenrelay.WithLogger(logger),
	}
	if registerer != nil {
		base = append(base, tokenrelay.WithMetrics(registerer))
	}

	supplier, err := tokenrelay.NewSupplier(store, regs, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return supplier, nil
}

// NewTokenValidator builds the inbound JWT validator from the jwt section. It
// fails when the section is not configured. opts are applied after the
// logger option.
func (c *Config) NewTokenValidator(logger *zap.Logger, opts ...httpserver.ValidatorOption) (*httpserver.JWTTokenValidator, error) {
	if !c.JWT.Enabled() {
		return nil, errors.New("config: jwt.issuer and jwt.audience are required for token validation")
	}

	base := []httpserver.ValidatorOption{httpserver.WithValidatorLogger(logger)}
	validator, err := httpserver.NewValidator(c.JWT.ValidatorConfig(), append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return validator, nil
}

// NewHTTPClient builds the outbound HTTP client from the http_client section,
// relaying credentials through supplier.
func (c *Config) NewHTTPClient(supplier *tokenrelay.Supplier, opts ...httpclient.Option) (*http.Client, error) {
	client, err := httpclient.New(c.HTTPClient, supplier, opts...)
	if err != nil {
		return nil, fmt.Errorf("config: http_client: %w", err)
	}
	return client, nil
}

// NewGRPCClient connects to the downstream service declared as name under
// grpc_clients, relaying credentials through supplier.
func (c *Config) NewGRPCClient(name string, supplier *tokenrelay.Supplier, dialOpts ...grpc.DialOption) (*grpc.ClientConn, error) {
	cfg, ok := c.GRPCClients[name]
	if !ok {
		return nil, fmt.Errorf("config: grpc_clients.%s is not configured", name)
	}

	conn, err := grpcclient.NewClient(cfg, supplier, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("config: grpc_clients.%s: %w", name, err)
	}
	return conn, nil
}
