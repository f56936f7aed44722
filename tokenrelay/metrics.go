package tokenrelay

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcomes reported by the refresh counter.
const (
	outcomeSuccess    = "success"
	outcomeRejected   = "rejected"
	outcomeNoToken    = "no_token"
	outcomeStoreError = "store_error"
)

// Principal kinds reported by the header counter.
const (
	principalNone      = "none"
	principalBearer    = "bearer"
	principalDelegated = "delegated"
)

type metrics struct {
	refreshes *prometheus.CounterVec
	headers   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "token_relay",
		Name:      "refresh_total",
		Help:      "Refresh token exchanges by registration and outcome.",
	}, []string{"registration", "outcome"})

	headers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "token_relay",
		Name:      "header_total",
		Help:      "Authorization header lookups by principal kind.",
	}, []string{"principal"})

	var err error
	if refreshes, err = registerCounterVec(reg, refreshes); err != nil {
		return nil, err
	}
	if headers, err = registerCounterVec(reg, headers); err != nil {
		return nil, err
	}

	return &metrics{refreshes: refreshes, headers: headers}, nil
}

// registerCounterVec registers c, reusing an identical collector that is
// already registered (several suppliers may share one registry).
func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func (m *metrics) refresh(registration, outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(registration, outcome).Inc()
}

func (m *metrics) header(principal string) {
	if m == nil {
		return
	}
	m.headers.WithLabelValues(principal).Inc()
}
