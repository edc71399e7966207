package risk

import (
	"sort"
	"strings"
	"sync"
)

// DefaultAccount keys the manager used when a signal names no account.
const DefaultAccount = "BYBIT"

// Registry keeps one long-lived Manager per account so that daily stats
// accumulate across requests for the life of the process.
type Registry struct {
	cfg  Config
	opts []ManagerOption

	mu       sync.Mutex
	managers map[string]*Manager
}

// NewRegistry creates a registry whose managers all share cfg and opts.
func NewRegistry(cfg Config, opts ...ManagerOption) *Registry {
	return &Registry{
		cfg:      cfg,
		opts:     opts,
		managers: make(map[string]*Manager),
	}
}

// Get returns the manager for account, creating it on first use. Account
// names are case-insensitive.
func (r *Registry) Get(account string) *Manager {
	key := NormalizeAccount(account)

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.managers[key]
	if !ok {
		m = NewManager(r.cfg, r.opts...)
		r.managers[key] = m
	}
	return m
}

// Accounts lists the accounts that have a manager, sorted.
func (r *Registry) Accounts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts := make([]string, 0, len(r.managers))
	for account := range r.managers {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts
}

// NormalizeAccount upper-cases account and maps an empty name to DefaultAccount.
func NormalizeAccount(account string) string {
	account = strings.ToUpper(strings.TrimSpace(account))
	if account == "" {
		return DefaultAccount
	}
	return account
}
