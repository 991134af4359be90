package auth

import (
	"fmt"
	"sync"
)

// Credential is the tagged union of ways an account authenticates. An
// account holds exactly one of a local password hash or a federated link.
type Credential interface {
	credential()
}

// LocalCredential marks an account that signs in with a password.
type LocalCredential struct {
	PasswordHash string
}

// FederatedIdentity links an account to a subject at an external provider.
type FederatedIdentity struct {
	Subject  string
	Provider string
}

func (LocalCredential) credential()   {}
func (FederatedIdentity) credential() {}

// Account is an identity record. Accounts are created at registration or
// first federated sign-in and never mutated afterwards.
type Account struct {
	ID         int64
	Username   string
	Email      string
	Credential Credential
}

// AuthType reports how the account authenticates, "local" or "oidc".
func (a Account) AuthType() string {
	if _, ok := a.Credential.(FederatedIdentity); ok {
		return "oidc"
	}
	return "local"
}

// FederatedProvider returns the linked provider name for federated accounts.
func (a Account) FederatedProvider() (string, bool) {
	fed, ok := a.Credential.(FederatedIdentity)
	if !ok {
		return "", false
	}
	return fed.Provider, true
}

// AccountStore keeps accounts in memory. All read-modify-write sequences
// (duplicate check then insert) run under one lock.
type AccountStore struct {
	mu       sync.RWMutex
	accounts []Account
	nextID   int64
}

// NewAccountStore constructs an empty store. IDs start at 1.
func NewAccountStore() *AccountStore {
	return &AccountStore{nextID: 1}
}

// CreateLocal registers a password-based account. The username must be
// unused.
func (s *AccountStore) CreateLocal(username, email, passwordHash string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Username == username {
			return Account{}, fmt.Errorf("username %q: %w", username, ErrDuplicateAccount)
		}
	}
	acct := Account{
		ID:         s.nextID,
		Username:   username,
		Email:      email,
		Credential: LocalCredential{PasswordHash: passwordHash},
	}
	s.nextID++
	s.accounts = append(s.accounts, acct)
	return acct, nil
}

// ByUsername looks up an account by its display name.
func (s *AccountStore) ByUsername(username string) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Username == username {
			return a, true
		}
	}
	return Account{}, false
}

// ByFederation looks up an account by its (subject, provider) link.
func (s *AccountStore) ByFederation(subject, provider string) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.findFederation(subject, provider); ok {
		return a, true
	}
	return Account{}, false
}

// FindOrCreateFederated returns the account linked to (subject, provider),
// provisioning one if it does not exist yet. The check and insert happen
// under a single lock so concurrent first sign-ins cannot create duplicates.
func (s *AccountStore) FindOrCreateFederated(subject, provider, email, username string) Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.findFederation(subject, provider); ok {
		return a
	}
	acct := Account{
		ID:         s.nextID,
		Username:   username,
		Email:      email,
		Credential: FederatedIdentity{Subject: subject, Provider: provider},
	}
	s.nextID++
	s.accounts = append(s.accounts, acct)
	return acct
}

func (s *AccountStore) findFederation(subject, provider string) (Account, bool) {
	for _, a := range s.accounts {
		fed, ok := a.Credential.(FederatedIdentity)
		if ok && fed.Subject == subject && fed.Provider == provider {
			return a, true
		}
	}
	return Account{}, false
}

// Authenticate checks a username/password pair against the store. Unknown
// usernames and wrong passwords fail identically.
func Authenticate(store *AccountStore, hasher *Hasher, username, password string) (Account, error) {
	acct, ok := store.ByUsername(username)
	if !ok {
		return Account{}, ErrCredentialMismatch
	}
	local, ok := acct.Credential.(LocalCredential)
	if !ok {
		return Account{}, ErrCredentialMismatch
	}
	if !hasher.Verify(password, local.PasswordHash) {
		return Account{}, ErrCredentialMismatch
	}
	return acct, nil
}
