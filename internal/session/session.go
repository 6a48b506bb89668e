// Package session models the authenticated wallet session and resolves the
// chain-scoped signing identity the transfer pipeline acts as.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrInvalidSession = errors.New("session: invalid session")
	ErrNoSession      = errors.New("session: no active session")
	ErrNoAccount      = errors.New("session: no matching account")
)

// Account is a chain-scoped signing identity held by the session.
type Account struct {
	Network   string
	Address   string
	PublicKey string
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Address) == "" {
		return fmt.Errorf("%w: account missing address", ErrInvalidSession)
	}
	if strings.TrimSpace(a.PublicKey) == "" {
		return fmt.Errorf("%w: account missing public key", ErrInvalidSession)
	}
	return nil
}

type Session struct {
	Token    string
	Accounts []Account
}

func (s Session) Validate() error {
	if strings.TrimSpace(s.Token) == "" {
		return fmt.Errorf("%w: missing token", ErrInvalidSession)
	}
	for _, a := range s.Accounts {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Resolver yields the signing identity for a network. An explicit resolver
// keeps the transfer pipeline independent of ambient session globals.
type Resolver interface {
	Resolve(ctx context.Context, network string) (Account, error)
}

// MemoryStore holds the current session in memory and resolves accounts
// from it.
type MemoryStore struct {
	mu   sync.RWMutex
	sess *Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SetSession(s Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	cp := s
	cp.Accounts = append([]Account(nil), s.Accounts...)

	m.mu.Lock()
	m.sess = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear() {
	m.mu.Lock()
	m.sess = nil
	m.mu.Unlock()
}

func (m *MemoryStore) Token(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sess == nil {
		return "", ErrNoSession
	}
	return m.sess.Token, nil
}

// Resolve returns the account for the given network. An empty network falls
// back to the sole account when the session holds exactly one.
func (m *MemoryStore) Resolve(_ context.Context, network string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.sess == nil {
		return Account{}, ErrNoSession
	}

	network = strings.TrimSpace(network)
	if network == "" {
		if len(m.sess.Accounts) == 1 {
			return m.sess.Accounts[0], nil
		}
		return Account{}, fmt.Errorf("%w: network required with %d accounts", ErrNoAccount, len(m.sess.Accounts))
	}
	for _, a := range m.sess.Accounts {
		if strings.EqualFold(a.Network, network) {
			return a, nil
		}
	}
	return Account{}, fmt.Errorf("%w: network %q", ErrNoAccount, network)
}
