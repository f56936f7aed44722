package clientstore

import (
	"context"
	"errors"
	"sync"

	"github.com/dashdevs/sme-finance-core/security"
	"github.com/dashdevs/sme-finance-core/tokenrelay"
)

// Memory is an in-process tokenrelay.Store. Records are copied on the way in
// and out, so callers cannot mutate stored state.
type Memory struct {
	mu      sync.RWMutex
	clients map[key]*tokenrelay.AuthorizedClient
}

type key struct {
	registrationID string
	principalName  string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{clients: make(map[key]*tokenrelay.AuthorizedClient)}
}

// Load returns the record for the key, or (nil, nil) when none is stored.
func (m *Memory) Load(_ context.Context, registrationID, principalName string) (*tokenrelay.AuthorizedClient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.clients[key{registrationID, principalName}].Clone(), nil
}

// Save replaces the record for client's key.
func (m *Memory) Save(_ context.Context, client *tokenrelay.AuthorizedClient, _ security.Principal) error {
	if client == nil {
		return errors.New("clientstore: client is nil")
	}
	if err := validateKey(client.RegistrationID, client.PrincipalName); err != nil {
		return err
	}

	m.mu.Lock()
	m.clients[key{client.RegistrationID, client.PrincipalName}] = client.Clone()
	m.mu.Unlock()

	return nil
}

// Remove deletes the record for the key. Removing a missing record is not an error.
func (m *Memory) Remove(_ context.Context, registrationID, principalName string) error {
	m.mu.Lock()
	delete(m.clients, key{registrationID, principalName})
	m.mu.Unlock()

	return nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func validateKey(registrationID, principalName string) error {
	switch {
	case registrationID == "":
		return errors.New("clientstore: registration id is required")
	case principalName == "":
		return errors.New("clientstore: principal name is required")
	}
	return nil
}
