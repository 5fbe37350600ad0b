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

type ActionRepository struct {
	col *mongo.Collection
}

var _ ports.ActionRepository = (*ActionRepository)(nil)

func NewActionRepository(db *mongo.Database) *ActionRepository {
	return &ActionRepository{col: db.Collection(collectionActions)}
}

func (r *ActionRepository) ListActions(ctx context.Context, userID string) ([]domain.Action, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	var docs []actionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}

	out := make([]domain.Action, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
