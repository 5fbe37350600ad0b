package ports

import (
	"context"
	"time"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
)

// UserRepository owns user rows and the role/policy graph hanging off them.
type UserRepository interface {
	// GetUserWithPolicy loads the user with its role and the role's policy
	// (when attached). Returns domain.ErrUserNotFound when absent.
	GetUserWithPolicy(ctx context.Context, userID string) (*domain.User, error)
	UpdateUserScore(ctx context.Context, userID string, score int, class domain.Classification) error
	// UpdateUserLock applies the lock only when locked_until is null or earlier
	// than lockedUntil, and reports whether it did.
	UpdateUserLock(ctx context.Context, userID string, lockedUntil time.Time, ackRequired bool) (bool, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

// PolicyRepository reads org-scoped policies.
type PolicyRepository interface {
	// GetDefaultOrgPolicy returns domain.ErrPolicyNotFound when no ORG policy
	// named DEFAULT exists.
	GetDefaultOrgPolicy(ctx context.Context) (*domain.Policy, error)
}

// ActionRepository reads the commitments a user has declared.
type ActionRepository interface {
	ListActions(ctx context.Context, userID string) ([]domain.Action, error)
}
