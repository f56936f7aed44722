// Package pgtest starts a PostgreSQL container for integration tests.
//
// Containers are started with reuse enabled, so a test run attaches to the
// container left by the previous run of the same database name instead of
// booting a new one.
//
// Example:
//
//	func TestRepository(t *testing.T) {
//	    pg := pgtest.Shared(t)
//	    pool, err := pgxpool.New(ctx, pg.DSN())
//	    ...
//	}
package pgtest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

const (
	// DefaultImage is the PostgreSQL image integration tests run against.
	DefaultImage = "postgres:15.0-alpine"

	// DatabasePrefix is followed by a random digit to form the database name.
	DatabasePrefix = "sme-finance-integration-tests-db-"

	defaultUsername = "sme-finance"
	defaultPassword = "sme-finance"
	postgresPort    = "5432/tcp"
	startupTimeout  = 60 * time.Second
	readyLogLine    = "database system is ready to accept connections"
)

// Container is a running PostgreSQL test container.
type Container struct {
	container testcontainers.Container
	host      string
	port      string
	database  string
	username  string
	password  string
}

type options struct {
	image    string
	database string
	logger   *zap.Logger
}

// Option configures Start.
type Option func(*options)

// WithImage overrides DefaultImage.
func WithImage(image string) Option {
	return func(o *options) {
		o.image = image
	}
}

// WithDatabase overrides the random database name.
func WithDatabase(name string) Option {
	return func(o *options) {
		o.database = name
	}
}

// WithLogger forwards container output to logger at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Start starts (or reuses) a PostgreSQL container and waits until it accepts connections.
func Start(ctx context.Context, opts ...Option) (*Container, error) {
	o := &options{
		image:    DefaultImage,
		database: fmt.Sprintf("%s%d", DatabasePrefix, rand.IntN(10)),
	}
	for _, opt := range opts {
		opt(o)
	}

	req := testcontainers.ContainerRequest{
		Name:         "pgtest-" + o.database,
		Image:        o.image,
		ExposedPorts: []string{postgresPort},
		Env: map[string]string{
			"POSTGRES_DB":       o.database,
			"POSTGRES_USER":     defaultUsername,
			"POSTGRES_PASSWORD": defaultPassword,
		},
		Tmpfs: map[string]string{"/test-tmpfs": "rw"},
		// The server restarts once after initdb, so the ready line appears twice.
		WaitingFor: wait.ForAll(
			wait.ForLog(readyLogLine).WithOccurrence(2).WithStartupTimeout(startupTimeout),
			wait.ForListeningPort(postgresPort).WithStartupTimeout(startupTimeout),
		),
	}
	if o.logger != nil {
		req.LogConsumerCfg = &testcontainers.LogConsumerConfig{
			Consumers: []testcontainers.LogConsumer{&zapLogConsumer{logger: o.logger}},
		}
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
		Reuse:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("pgtest: failed to start container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("pgtest: failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, postgresPort)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("pgtest: failed to get mapped port: %w", err)
	}

	return &Container{
		container: container,
		host:      host,
		port:      port.Port(),
		database:  o.database,
		username:  defaultUsername,
		password:  defaultPassword,
	}, nil
}

// DSN returns a pgx connection string for the test database.
func (c *Container) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.username, c.password),
		Host:     net.JoinHostPort(c.host, c.port),
		Path:     "/" + c.database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Database returns the database name.
func (c *Container) Database() string { return c.database }

// Username returns the database user.
func (c *Container) Username() string { return c.username }

// Password returns the database password.
func (c *Container) Password() string { return c.password }

// Terminate stops and removes the container.
func (c *Container) Terminate(ctx context.Context) error {
	if c == nil || c.container == nil {
		return nil
	}
	return c.container.Terminate(ctx)
}

var (
	sharedOnce      sync.Once
	sharedContainer *Container
	sharedErr       error
)

// Shared returns a process-wide container, starting it on first use. The test
// is skipped when no container runtime is available.
func Shared(t *testing.T) *Container {
	t.Helper()

	testcontainers.SkipIfProviderIsNotHealthy(t)

	sharedOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*startupTimeout)
		defer cancel()
		sharedContainer, sharedErr = Start(ctx)
	})
	if sharedErr != nil {
		t.Skipf("pgtest: postgres container unavailable: %v", sharedErr)
	}

	return sharedContainer
}

type zapLogConsumer struct {
	logger *zap.Logger
}

func (c *zapLogConsumer) Accept(l testcontainers.Log) {
	c.logger.Debug(strings.TrimRight(string(l.Content), "\n"), zap.String("stream", l.LogType))
}
