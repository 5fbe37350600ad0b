package ports

import (
	"context"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
)

// AuditRepository is the append-only audit sink.
type AuditRepository interface {
	AppendAuditLog(ctx context.Context, entry *domain.AuditLog) error
}
