package grpcclient

import (
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dashdevs/sme-finance-core/clienttls"
	"github.com/dashdevs/sme-finance-core/tokenrelay"
)

// Config describes the connection to one downstream gRPC service. It mirrors
// an entry of the grpc_clients section of the service configuration.
type Config struct {
	// Address is the dial target, e.g. "accounts.internal:9090".
	Address string `mapstructure:"address"`

	// Plaintext disables transport security. Use it only inside a mesh that
	// already encrypts traffic.
	Plaintext bool `mapstructure:"plaintext"`

	// TLS configures server verification and the client certificate.
	TLS clienttls.Config `mapstructure:"tls"`
}

// Validate reports settings NewClient would reject before loading any file.
func (c Config) Validate() error {
	var errs []error
	if c.Address == "" {
		errs = append(errs, errors.New("grpcclient: server address is required"))
	}
	if c.Plaintext && !c.TLS.IsZero() {
		errs = append(errs, errors.New("grpcclient: plaintext connections take no TLS settings"))
	}
	if err := c.TLS.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// NewClient creates a connection configured by cfg. When supplier is non-nil
// unary and stream interceptors relay the credentials of the security.Context
// found in each RPC context. dialOpts are applied after the relay and
// transport options, so they may override the transport credentials.
//
// Example:
//
//	conn, err := grpcclient.NewClient(cfg.GRPCClients["accounts"], supplier)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
func NewClient(cfg Config, supplier *tokenrelay.Supplier, dialOpts ...grpc.DialOption) (*grpc.ClientConn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []grpc.DialOption

	if supplier != nil {
		opts = append(opts,
			grpc.WithChainUnaryInterceptor(supplier.UnaryClientInterceptor()),
			grpc.WithChainStreamInterceptor(supplier.StreamClientInterceptor()),
		)
	}

	if cfg.Plaintext {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		tlsConfig, err := cfg.TLS.Load()
		if err != nil {
			return nil, fmt.Errorf("grpcclient: TLS config failed: %w", err)
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	}

	opts = append(opts, dialOpts...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: dial failed: %w", err)
	}

	return conn, nil
}
