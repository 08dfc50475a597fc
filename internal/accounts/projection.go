package accounts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/confbus/internal/events"
	"github.com/shaiso/confbus/internal/telemetry"
)

// Outcome — результат применения события к проекции.
type Outcome string

const (
	OutcomeUpserted Outcome = "upserted"
	OutcomeRemoved  Outcome = "removed"
	OutcomeStale    Outcome = "stale"
)

// Projection применяет события аккаунтов к Store.
type Projection struct {
	store  Store
	logger *slog.Logger
}

// NewProjection создаёт проекцию поверх store.
func NewProjection(store Store, logger *slog.Logger) *Projection {
	if logger == nil {
		logger = slog.Default()
	}
	return &Projection{
		store:  store,
		logger: logger.With("component", "projection"),
	}
}

// Store возвращает хранилище проекции.
func (p *Projection) Store() Store {
	return p.store
}

// Apply применяет событие.
//
// Деактивация удаляет запись всегда, даже если событие старше записи.
// Ошибки хранилища оборачиваются в ErrProjectionWrite.
func (p *Projection) Apply(ctx context.Context, ev events.AccountEvent) (Outcome, error) {
	acc := FromEvent(ev)

	var outcome Outcome
	if !ev.IsActive {
		existed, err := p.store.Delete(ctx, acc.Email)
		if err != nil {
			return "", fmt.Errorf("%w: delete %s: %w", ErrProjectionWrite, acc.Email, err)
		}
		outcome = OutcomeRemoved
		p.logger.Info("account removed", "email", acc.Email, "existed", existed)
	} else {
		applied, err := p.store.Upsert(ctx, acc)
		if err != nil {
			return "", fmt.Errorf("%w: upsert %s: %w", ErrProjectionWrite, acc.Email, err)
		}
		if applied {
			outcome = OutcomeUpserted
			p.logger.Info("account upserted", "email", acc.Email, "updated", acc.Updated)
		} else {
			outcome = OutcomeStale
			p.logger.Warn("ignoring stale account event", "email", acc.Email, "updated", acc.Updated)
		}
	}

	telemetry.ProjectionOperations.WithLabelValues(string(outcome)).Inc()
	if n, err := p.store.Count(ctx); err == nil {
		telemetry.ProjectionSize.Set(float64(n))
	}

	return outcome, nil
}
