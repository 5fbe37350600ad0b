package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
	"github.com/disciplina/discipline-kernel/internal/core/ports"
)

type InstanceRepository struct {
	col *mongo.Collection
}

var _ ports.InstanceRepository = (*InstanceRepository)(nil)

func NewInstanceRepository(db *mongo.Database) *InstanceRepository {
	return &InstanceRepository{col: db.Collection(collectionInstances)}
}

func (r *InstanceRepository) ListInstances(ctx context.Context, userID string, rng domain.DateRange) ([]domain.ActionInstance, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"user_id":        userID,
		"scheduled_date": bson.M{"$gte": rng.From, "$lte": rng.To},
	}
	opts := options.Find().SetSort(bson.D{{Key: "scheduled_start_time", Value: 1}})

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	var docs []instanceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}

	out := make([]domain.ActionInstance, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *InstanceRepository) InstanceExists(ctx context.Context, actionID, date string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx,
		bson.M{"action_id": actionID, "scheduled_date": date},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("instance exists: %w", err)
	}
	return n > 0, nil
}

// CreateInstance relies on the unique (action_id, scheduled_date) index; a
// losing concurrent insert surfaces as domain.ErrDuplicateInstance.
func (r *InstanceRepository) CreateInstance(ctx context.Context, inst *domain.ActionInstance) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, newInstanceDoc(inst)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", domain.ErrDuplicateInstance
		}
		return "", fmt.Errorf("create instance: %w", err)
	}
	return inst.ID, nil
}

func (r *InstanceRepository) BulkMarkMissed(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "status": string(domain.StatusPending)},
		bson.M{"$set": bson.M{"status": string(domain.StatusMissed)}},
	)
	if err != nil {
		return 0, fmt.Errorf("bulk mark missed: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *InstanceRepository) GetInstance(ctx context.Context, id string) (*domain.ActionInstance, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var d instanceDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("get instance: %w", err)
	}
	inst := d.toDomain()
	return &inst, nil
}

func (r *InstanceRepository) MarkExecuted(ctx context.Context, id string, status domain.InstanceStatus, executedAt time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(domain.StatusPending)},
		bson.M{"$set": bson.M{"status": string(status), "executed_at": executedAt}},
	)
	if err != nil {
		return false, fmt.Errorf("mark executed: %w", err)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("mark executed: %w", err)
	}
	if n == 0 {
		return false, domain.ErrInstanceNotFound
	}
	return false, nil
}

// ListOverdueInstances applies the same filter as ListOverdueUserIDs, scoped
// to one user, so the live cycle and the sweep agree on what is overdue.
func (r *InstanceRepository) ListOverdueInstances(ctx context.Context, userID string, now time.Time) ([]domain.ActionInstance, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"user_id":            userID,
		"status":             string(domain.StatusPending),
		"scheduled_end_time": bson.M{"$lt": now},
	}
	opts := options.Find().SetSort(bson.D{{Key: "scheduled_start_time", Value: 1}})

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list overdue instances: %w", err)
	}
	var docs []instanceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list overdue instances: %w", err)
	}

	out := make([]domain.ActionInstance, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *InstanceRepository) ListOverdueUserIDs(ctx context.Context, now time.Time) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	vals, err := r.col.Distinct(ctx, "user_id", bson.M{
		"status":             string(domain.StatusPending),
		"scheduled_end_time": bson.M{"$lt": now},
	})
	if err != nil {
		return nil, fmt.Errorf("list overdue users: %w", err)
	}
	return stringValues(vals), nil
}
