package repository

import (
	"context"
	"sync/atomic"
	"time"

	"riad/internal/domain"
	"riad/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverWizardStore uses the primary store (Redis) until it fails, then
// serves from the fallback and probes the primary again once a minute.
type FailoverWizardStore struct {
	primary   domain.WizardStore
	fallback  domain.WizardStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverWizardStore(primary, fallback domain.WizardStore, logger *zerolog.Logger) *FailoverWizardStore {
	return &FailoverWizardStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverWizardStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary wizard store failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(r.now().UnixNano())
}

// usePrimary reports whether the next call should go to the primary store.
func (r *FailoverWizardStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return r.now().Sub(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverWizardStore) recovered() {
	if r.isDown.CompareAndSwap(true, false) {
		r.logger.Info().Msg("Primary wizard store recovered")
	}
}

func (r *FailoverWizardStore) GetSession(ctx context.Context, owner, id string) (*models.WizardSession, error) {
	if r.usePrimary() {
		session, err := r.primary.GetSession(ctx, owner, id)
		if err == nil {
			r.recovered()
			if session != nil {
				return session, nil
			}
			// сессия могла быть создана в памяти, пока Redis был недоступен
			return r.fallback.GetSession(ctx, owner, id)
		}
		r.markDown(err)
	}
	return r.fallback.GetSession(ctx, owner, id)
}

func (r *FailoverWizardStore) SaveSession(ctx context.Context, session *models.WizardSession, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.SaveSession(ctx, session, ttl)
		if err == nil {
			r.recovered()
			_ = r.fallback.DeleteSession(ctx, session.Owner, session.ID)
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SaveSession(ctx, session, ttl)
}

func (r *FailoverWizardStore) DeleteSession(ctx context.Context, owner, id string) error {
	fallbackErr := r.fallback.DeleteSession(ctx, owner, id)
	if r.usePrimary() {
		err := r.primary.DeleteSession(ctx, owner, id)
		if err == nil {
			r.recovered()
			return fallbackErr
		}
		r.markDown(err)
	}
	return fallbackErr
}
