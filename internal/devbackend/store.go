package devbackend

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/securestore"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

var (
	ErrUnknownIdentity   = errors.New("identity not registered")
	ErrIdentityTaken     = errors.New("identity registered to another key")
	ErrNotOwner          = errors.New("signer does not own identity")
	ErrLinkNotFound      = errors.New("oauth link not found")
	ErrBackupNotFound    = errors.New("backup not found")
	ErrEmptyBackup       = errors.New("encrypted backup required")
	ErrIncompleteAccount = errors.New("provider and oauth id required")
)

// LinkConflictError is returned when an OAuth account is already bound to a
// different identity.
type LinkConflictError struct {
	ExistingBapID string
}

func (e *LinkConflictError) Error() string {
	return "oauth account linked to another identity"
}

type user struct {
	ID        string
	BapID     string
	Address   string
	CreatedAt time.Time
}

type cloudBackup struct {
	Encrypted models.EncryptedBackup
	UpdatedAt time.Time
}

type linkKey struct {
	provider  string
	accountID string
}

// Store keeps users, cloud backups and OAuth links in memory. Each
// (provider, account) pair belongs to at most one identity.
type Store struct {
	mu        sync.RWMutex
	users     map[string]user
	byAddress map[string]string
	backups   map[string]cloudBackup
	links     map[linkKey]models.OAuthLink
	now       func() time.Time
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		users:     make(map[string]user),
		byAddress: make(map[string]string),
		backups:   make(map[string]cloudBackup),
		links:     make(map[linkKey]models.OAuthLink),
		now:       now,
	}
}

// CreateUser registers bapID under address and stores its first backup.
// Re-registering with the same address refreshes the backup.
func (s *Store) CreateUser(bapID, address string, encrypted models.EncryptedBackup) (string, error) {
	bapID = strings.TrimSpace(bapID)
	address = strings.TrimSpace(address)
	if bapID == "" || address == "" {
		return "", ErrUnknownIdentity
	}
	if strings.TrimSpace(string(encrypted)) == "" {
		return "", ErrEmptyBackup
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[bapID]
	if ok && existing.Address != address {
		return "", ErrIdentityTaken
	}
	if !ok {
		id, err := uuid.NewV7()
		if err != nil {
			return "", err
		}
		existing = user{ID: id.String(), BapID: bapID, Address: address, CreatedAt: s.now().UTC()}
		s.users[bapID] = existing
		s.byAddress[address] = bapID
	}
	s.backups[bapID] = cloudBackup{Encrypted: encrypted, UpdatedAt: s.now().UTC()}
	return existing.ID, nil
}

// IdentityForAddress resolves the identity registered under a signing address.
func (s *Store) IdentityForAddress(address string) (string, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bapID, ok := s.byAddress[address]
	if !ok {
		return "", "", false
	}
	return bapID, s.users[bapID].ID, true
}

func (s *Store) ownsLocked(bapID, address string) error {
	u, ok := s.users[bapID]
	if !ok {
		return ErrUnknownIdentity
	}
	if u.Address != address {
		return ErrNotOwner
	}
	return nil
}

// StoreBackup replaces the cloud backup of bapID and, when provider and
// accountID are set, links that OAuth account to bapID.
func (s *Store) StoreBackup(address string, req models.StoreBackupRequest) error {
	if strings.TrimSpace(string(req.EncryptedBackup)) == "" {
		return ErrEmptyBackup
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ownsLocked(req.BapID, address); err != nil {
		return err
	}
	provider := strings.ToLower(strings.TrimSpace(req.OAuthProvider))
	accountID := strings.TrimSpace(req.OAuthID)
	if (provider == "") != (accountID == "") {
		return ErrIncompleteAccount
	}
	if provider != "" {
		key := linkKey{provider: provider, accountID: accountID}
		if link, ok := s.links[key]; ok && link.IdentityKey != req.BapID {
			return &LinkConflictError{ExistingBapID: link.IdentityKey}
		}
		if _, ok := s.links[key]; !ok {
			s.links[key] = models.OAuthLink{
				Provider:          provider,
				ProviderAccountID: accountID,
				IdentityKey:       req.BapID,
				LinkedAt:          s.now().UTC(),
			}
		}
	}
	s.backups[req.BapID] = cloudBackup{Encrypted: req.EncryptedBackup, UpdatedAt: s.now().UTC()}
	return nil
}

// OAuthBackup returns the backup of the identity currently holding the link.
func (s *Store) OAuthBackup(provider, accountID string) (models.OAuthBackup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.links[linkKey{provider: strings.ToLower(strings.TrimSpace(provider)), accountID: strings.TrimSpace(accountID)}]
	if !ok {
		return models.OAuthBackup{}, ErrLinkNotFound
	}
	backup, ok := s.backups[link.IdentityKey]
	if !ok {
		return models.OAuthBackup{}, ErrBackupNotFound
	}
	return models.OAuthBackup{BapID: link.IdentityKey, EncryptedBackup: backup.Encrypted}, nil
}

// Transfer moves a link from FromBapID to ToBapID. address must be the
// registered signing address of FromBapID and the link must still be held by
// it; nothing changes otherwise.
func (s *Store) Transfer(address string, req models.TransferRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ownsLocked(req.FromBapID, address); err != nil {
		return err
	}
	if _, ok := s.users[req.ToBapID]; !ok {
		return ErrUnknownIdentity
	}
	key := linkKey{provider: strings.ToLower(strings.TrimSpace(req.Provider)), accountID: strings.TrimSpace(req.OAuthID)}
	link, ok := s.links[key]
	if !ok {
		return ErrLinkNotFound
	}
	if link.IdentityKey != req.FromBapID {
		return &LinkConflictError{ExistingBapID: link.IdentityKey}
	}
	link.IdentityKey = req.ToBapID
	link.LinkedAt = s.now().UTC()
	s.links[key] = link
	if strings.TrimSpace(string(req.EncryptedBackup)) != "" {
		s.backups[req.ToBapID] = cloudBackup{Encrypted: req.EncryptedBackup, UpdatedAt: s.now().UTC()}
	}
	return nil
}

func (s *Store) Status(bapID string) models.CloudBackupStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	backup, ok := s.backups[bapID]
	if !ok {
		return models.CloudBackupStatus{}
	}
	return models.CloudBackupStatus{
		HasBackup:  true,
		UpdatedAt:  backup.UpdatedAt,
		BackupHash: securestore.Fingerprint(backup.Encrypted),
	}
}

func (s *Store) Accounts(bapID string) []models.ConnectedAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ConnectedAccount, 0)
	for _, link := range s.links {
		if link.IdentityKey != bapID {
			continue
		}
		out = append(out, models.ConnectedAccount{
			Provider:          link.Provider,
			ProviderAccountID: link.ProviderAccountID,
			LinkedAt:          link.LinkedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].ProviderAccountID < out[j].ProviderAccountID
	})
	return out
}

// Disconnect removes every link of provider held by bapID.
func (s *Store) Disconnect(bapID, provider string) int {
	provider = strings.ToLower(strings.TrimSpace(provider))
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, link := range s.links {
		if key.provider == provider && link.IdentityKey == bapID {
			delete(s.links, key)
			removed++
		}
	}
	return removed
}

// LinkOwner reports which identity holds (provider, accountID).
func (s *Store) LinkOwner(provider, accountID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.links[linkKey{provider: strings.ToLower(strings.TrimSpace(provider)), accountID: strings.TrimSpace(accountID)}]
	return link.IdentityKey, ok
}
