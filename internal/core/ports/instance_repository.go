package ports

import (
	"context"
	"time"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
)

// InstanceRepository defines persistence operations for action instances.
type InstanceRepository interface {
	// ListInstances returns the user's instances whose scheduled date falls in r.
	ListInstances(ctx context.Context, userID string, r domain.DateRange) ([]domain.ActionInstance, error)
	InstanceExists(ctx context.Context, actionID, date string) (bool, error)
	// CreateInstance must be safe under concurrency: a second insert for the
	// same (action, date) returns domain.ErrDuplicateInstance.
	CreateInstance(ctx context.Context, inst *domain.ActionInstance) (string, error)
	// BulkMarkMissed moves the given instances to MISSED, touching only those
	// still PENDING. Returns how many changed.
	BulkMarkMissed(ctx context.Context, ids []string) (int64, error)
	GetInstance(ctx context.Context, id string) (*domain.ActionInstance, error)
	// MarkExecuted records an execution when the instance is still PENDING and
	// reports whether it did.
	MarkExecuted(ctx context.Context, id string, status domain.InstanceStatus, executedAt time.Time) (bool, error)
	// ListOverdueInstances returns the user's PENDING instances whose end time
	// is before now, regardless of scheduled date.
	ListOverdueInstances(ctx context.Context, userID string, now time.Time) ([]domain.ActionInstance, error)
	// ListOverdueUserIDs returns users owning at least one PENDING instance
	// whose end time is before now.
	ListOverdueUserIDs(ctx context.Context, now time.Time) ([]string, error)
}

// ScoreRepository stores the daily discipline snapshots.
type ScoreRepository interface {
	// UpsertDailyScore writes the snapshot, replacing any for the same (user, date).
	UpsertDailyScore(ctx context.Context, s domain.DisciplineScore) error
}
