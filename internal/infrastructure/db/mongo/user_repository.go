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

// UserRepository reads users together with their role and policy, and owns
// the score and lock fields the kernel writes back.
type UserRepository struct {
	users    *mongo.Collection
	roles    *mongo.Collection
	policies *mongo.Collection
}

var (
	_ ports.UserRepository   = (*UserRepository)(nil)
	_ ports.PolicyRepository = (*UserRepository)(nil)
)

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		users:    db.Collection(collectionUsers),
		roles:    db.Collection(collectionRoles),
		policies: db.Collection(collectionPolicies),
	}
}

func (r *UserRepository) GetUserWithPolicy(ctx context.Context, userID string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var ud userDoc
	if err := r.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&ud); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	user := ud.toDomain()
	if ud.RoleID == "" {
		return user, nil
	}

	var rd roleDoc
	if err := r.roles.FindOne(ctx, bson.M{"_id": ud.RoleID}).Decode(&rd); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// A dangling role reference resolves like no role at all.
			return user, nil
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	user.Role = &domain.Role{ID: rd.ID, Name: rd.Name}
	if rd.PolicyID == "" {
		return user, nil
	}

	var pd policyDoc
	if err := r.policies.FindOne(ctx, bson.M{"_id": rd.PolicyID}).Decode(&pd); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user, nil
		}
		return nil, fmt.Errorf("find role policy: %w", err)
	}
	user.Role.Policy = pd.toDomain()
	return user, nil
}

func (r *UserRepository) UpdateUserScore(ctx context.Context, userID string, score int, class domain.Classification) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{
			"current_score":  score,
			"classification": string(class),
			"updated_at":     time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("update user score: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// UpdateUserLock is a single conditional update, so concurrent enforcement
// runs cannot shorten a lock.
func (r *UserRepository) UpdateUserLock(ctx context.Context, userID string, lockedUntil time.Time, ackRequired bool) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"_id": userID,
		"$or": bson.A{
			bson.M{"locked_until": nil},
			bson.M{"locked_until": bson.M{"$lt": lockedUntil}},
		},
	}
	update := bson.M{"$set": bson.M{
		"locked_until":            lockedUntil,
		"acknowledgment_required": ackRequired,
		"updated_at":              time.Now().UTC(),
	}}

	res, err := r.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("update user lock: %w", err)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	n, err := r.users.CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return false, fmt.Errorf("update user lock: %w", err)
	}
	if n == 0 {
		return false, domain.ErrUserNotFound
	}
	return false, nil
}

func (r *UserRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	vals, err := r.users.Distinct(ctx, "_id", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return stringValues(vals), nil
}

func (r *UserRepository) GetDefaultOrgPolicy(ctx context.Context) (*domain.Policy, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// Several defaults may exist; the lowest id wins, as in the memory store.
	var pd policyDoc
	err := r.policies.FindOne(ctx, bson.M{
		"scope": string(domain.ScopeOrg),
		"name":  domain.DefaultPolicyName,
	}, options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})).Decode(&pd)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrPolicyNotFound
		}
		return nil, fmt.Errorf("find default policy: %w", err)
	}
	return pd.toDomain(), nil
}

func stringValues(vals []interface{}) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
