package repository

import (
	"context"
	"sync"
	"time"

	"riad/internal/models"
)

type memoryEntry struct {
	session   models.WizardSession
	expiresAt time.Time
}

// MemoryWizardStore is the in-process wizard store used without Redis and
// as the failover target. Expired sessions are dropped lazily on read.
type MemoryWizardStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

func NewMemoryWizardStore() *MemoryWizardStore {
	return &MemoryWizardStore{
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
	}
}

func (r *MemoryWizardStore) GetSession(ctx context.Context, owner, id string) (*models.WizardSession, error) {
	key := wizardKey(owner, id)

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[key]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && r.now().After(entry.expiresAt) {
		delete(r.sessions, key)
		return nil, nil
	}
	return cloneSession(&entry.session), nil
}

func (r *MemoryWizardStore) SaveSession(ctx context.Context, session *models.WizardSession, ttl time.Duration) error {
	entry := memoryEntry{session: *cloneSession(session)}
	if ttl > 0 {
		entry.expiresAt = r.now().Add(ttl)
	}

	r.mu.Lock()
	r.sessions[wizardKey(session.Owner, session.ID)] = entry
	r.mu.Unlock()
	return nil
}

func (r *MemoryWizardStore) DeleteSession(ctx context.Context, owner, id string) error {
	r.mu.Lock()
	delete(r.sessions, wizardKey(owner, id))
	r.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (r *MemoryWizardStore) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func cloneSession(s *models.WizardSession) *models.WizardSession {
	c := *s
	if s.CheckIn != nil {
		in := *s.CheckIn
		c.CheckIn = &in
	}
	if s.CheckOut != nil {
		out := *s.CheckOut
		c.CheckOut = &out
	}
	if s.Quote != nil {
		q := *s.Quote
		c.Quote = &q
	}
	return &c
}
