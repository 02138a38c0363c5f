package accountrepository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/superbrain63/superbrain-ai/internal/domain"
)

type memoryEntry struct {
	mu      sync.Mutex
	account domain.Account
	stored  bool
}

// Memory is an in-process account store for development and tests
type Memory struct {
	mu       sync.Mutex
	accounts map[string]*memoryEntry
	nowFunc  func() time.Time
}

func NewMemory(nowFunc func() time.Time) *Memory {
	return &Memory{
		accounts: make(map[string]*memoryEntry),
		nowFunc:  nowFunc,
	}
}

func (m *Memory) entry(userID string) *memoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.accounts[userID]
	if !ok {
		e = &memoryEntry{}
		m.accounts[userID] = e
	}
	return e
}

func (m *Memory) GetAccount(ctx context.Context, userID string) (domain.Account, error) {
	m.mu.Lock()
	e, ok := m.accounts[userID]
	m.mu.Unlock()
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.stored {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return e.account, nil
}

func (m *Memory) UpdateAccount(ctx context.Context, userID string, update UpdateFunc) (domain.Account, error) {
	if userID == "" {
		return domain.Account{}, fmt.Errorf("userID is empty")
	}

	e := m.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.stored {
		e.account = domain.NewAccount(userID, m.nowFunc())
		e.stored = true
	}
	current := e.account

	next, err := update(current)
	if err != nil {
		return current, err
	}
	if next.UserID != userID {
		return current, fmt.Errorf("update changed user id from %q to %q", userID, next.UserID)
	}

	e.account = next
	return next, nil
}

func (m *Memory) PutAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	if account.UserID == "" {
		return domain.Account{}, fmt.Errorf("userID is empty")
	}

	e := m.entry(account.UserID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.account = account
	e.stored = true
	return account, nil
}

var _ AccountRepository = (*Memory)(nil)
