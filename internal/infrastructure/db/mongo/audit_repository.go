package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
	"github.com/disciplina/discipline-kernel/internal/core/ports"
)

// AuditRepository is insert-only.
type AuditRepository struct {
	col *mongo.Collection
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{col: db.Collection(collectionAuditLogs)}
}

func (r *AuditRepository) AppendAuditLog(ctx context.Context, entry *domain.AuditLog) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, auditDoc{
		ID:           entry.ID,
		Action:       entry.Action,
		Details:      entry.Details,
		TargetUserID: entry.TargetUserID,
		ActorID:      entry.ActorID,
		TraceID:      entry.TraceID,
		Timestamp:    entry.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

type ScoreRepository struct {
	col *mongo.Collection
}

var _ ports.ScoreRepository = (*ScoreRepository)(nil)

func NewScoreRepository(db *mongo.Database) *ScoreRepository {
	return &ScoreRepository{col: db.Collection(collectionScores)}
}

func (r *ScoreRepository) UpsertDailyScore(ctx context.Context, sc domain.DisciplineScore) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.ReplaceOne(ctx,
		bson.M{"user_id": sc.UserID, "date": sc.Date},
		scoreDoc{
			UserID:        sc.UserID,
			Date:          sc.Date,
			Score:         sc.Score,
			ExecutionRate: sc.ExecutionRate,
			OnTimeRate:    sc.OnTimeRate,
			ComputedAt:    sc.ComputedAt,
		},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert daily score: %w", err)
	}
	return nil
}
