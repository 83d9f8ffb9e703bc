package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Provider is the read side consumed by the fee, commission and payout code.
type Provider interface {
	Get(ctx context.Context) (Settings, error)
}

// Service reads and versions the platform settings.
type Service interface {
	Provider
	Update(ctx context.Context, next Settings, updatedBy uuid.UUID) (Settings, error)
	Invalidate()
}

// ServiceParams wires the settings service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Logger   *logger.Logger
	CacheTTL time.Duration
	Now      func() time.Time
}

type service struct {
	repo   Repository
	tx     txRunner
	logger *logger.Logger
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	cached   *Settings
	cachedAt time.Time
}

// NewService builds a settings service with an in-process TTL cache.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		logger: params.Logger,
		ttl:    params.CacheTTL,
		now:    params.Now,
	}, nil
}

func (s *service) Get(ctx context.Context) (Settings, error) {
	if cached, ok := s.fromCache(); ok {
		return cached, nil
	}

	row, err := s.repo.GetActive(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Settings{}, pkgerrors.New(pkgerrors.CodeIntegrity, "no active platform settings")
		}
		return Settings{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load platform settings")
	}

	current := fromModel(row)
	if err := current.Validate(); err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "settings_version", current.Version), "active settings failed validation")
		return Settings{}, pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, "malformed platform settings")
	}

	s.store(current)
	return current, nil
}

func (s *service) Update(ctx context.Context, next Settings, updatedBy uuid.UUID) (Settings, error) {
	next = next.Normalized()
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}

	var saved Settings
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		version, err := repo.MaxVersion(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read settings version")
		}
		if err := repo.DeactivateAll(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate settings")
		}

		next.Version = version + 1
		row := toModel(next)
		if updatedBy != uuid.Nil {
			row.UpdatedBy = &updatedBy
		}
		if err := repo.Create(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create settings version")
		}
		saved = fromModel(row)
		return nil
	})
	if err != nil {
		return Settings{}, err
	}

	s.Invalidate()
	ctx = s.logger.WithFields(ctx, map[string]any{"settings_version": saved.Version, "updated_by": updatedBy.String()})
	s.logger.Info(ctx, "platform settings updated")
	return saved, nil
}

// Invalidate drops the cached snapshot; the next Get reloads from storage.
func (s *service) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *service) fromCache() (Settings, bool) {
	if s.ttl <= 0 {
		return Settings{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached == nil || s.now().Sub(s.cachedAt) >= s.ttl {
		return Settings{}, false
	}
	return *s.cached, true
}

func (s *service) store(current Settings) {
	if s.ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.cached = &current
	s.cachedAt = s.now()
	s.mu.Unlock()
}
