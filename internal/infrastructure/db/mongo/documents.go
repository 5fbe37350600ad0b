package mongo

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
)

type userDoc struct {
	ID                     string     `bson:"_id"`
	Email                  string     `bson:"email,omitempty"`
	CurrentScore           *int       `bson:"current_score"`
	Classification         string     `bson:"classification"`
	LockedUntil            *time.Time `bson:"locked_until"`
	AcknowledgmentRequired bool       `bson:"acknowledgment_required"`
	EnforcementMode        string     `bson:"enforcement_mode,omitempty"`
	RoleID                 string     `bson:"role_id,omitempty"`
	CreatedAt              time.Time  `bson:"created_at"`
	UpdatedAt              time.Time  `bson:"updated_at"`
}

// toDomain fills in the neutral score for documents that were never scored.
func (d userDoc) toDomain() *domain.User {
	u := &domain.User{
		ID:                     d.ID,
		Email:                  d.Email,
		CurrentScore:           domain.NeutralScore,
		Classification:         domain.Classification(d.Classification),
		AcknowledgmentRequired: d.AcknowledgmentRequired,
		EnforcementMode:        domain.EnforcementMode(d.EnforcementMode),
		CreatedAt:              d.CreatedAt,
		UpdatedAt:              d.UpdatedAt,
	}
	if d.CurrentScore != nil {
		u.CurrentScore = *d.CurrentScore
	}
	if d.LockedUntil != nil {
		t := d.LockedUntil.UTC()
		u.LockedUntil = &t
	}
	if u.Classification == "" {
		u.Classification = domain.Classify(u.CurrentScore)
	}
	return u
}

type roleDoc struct {
	ID       string `bson:"_id"`
	Name     string `bson:"name"`
	PolicyID string `bson:"policy_id,omitempty"`
}

// policyDoc keeps rules as whatever BSON value was stored: an embedded
// document or a JSON string. Parsing is deferred to policy resolution.
type policyDoc struct {
	ID              string        `bson:"_id"`
	Name            string        `bson:"name"`
	Scope           string        `bson:"scope"`
	EnforcementMode string        `bson:"enforcement_mode"`
	Rules           bson.RawValue `bson:"rules"`
}

func (d policyDoc) toDomain() *domain.Policy {
	return &domain.Policy{
		ID:              d.ID,
		Name:            d.Name,
		Scope:           domain.PolicyScope(d.Scope),
		EnforcementMode: domain.EnforcementMode(d.EnforcementMode),
		RawRules:        rawRules(d.Rules),
	}
}

// rawRules renders the stored rules as JSON. Values it cannot render come
// back as a string the rule parser will reject, which yields system defaults.
func rawRules(v bson.RawValue) string {
	switch v.Type {
	case 0, bsontype.Null, bsontype.Undefined:
		return ""
	case bsontype.String:
		return v.StringValue()
	case bsontype.EmbeddedDocument:
		var m bson.M
		if err := v.Unmarshal(&m); err != nil {
			return fmt.Sprintf("<invalid: %v>", err)
		}
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Sprintf("<invalid: %v>", err)
		}
		return string(b)
	default:
		return fmt.Sprintf("<unsupported rules type %s>", v.Type)
	}
}

type actionDoc struct {
	ID                    string    `bson:"_id"`
	UserID                string    `bson:"user_id"`
	Title                 string    `bson:"title"`
	FrequencyRule         string    `bson:"frequency_rule"`
	WindowStartTime       string    `bson:"window_start_time"`
	WindowDurationMinutes int       `bson:"window_duration_minutes"`
	IsStrict              bool      `bson:"is_strict"`
	Archived              bool      `bson:"archived"`
	CreatedAt             time.Time `bson:"created_at"`
}

func (d actionDoc) toDomain() domain.Action {
	return domain.Action{
		ID:                    d.ID,
		UserID:                d.UserID,
		Title:                 d.Title,
		FrequencyRule:         d.FrequencyRule,
		WindowStartTime:       d.WindowStartTime,
		WindowDurationMinutes: d.WindowDurationMinutes,
		IsStrict:              d.IsStrict,
		Archived:              d.Archived,
		CreatedAt:             d.CreatedAt,
	}
}

type instanceDoc struct {
	ID                 string     `bson:"_id"`
	ActionID           string     `bson:"action_id"`
	UserID             string     `bson:"user_id"`
	ScheduledDate      string     `bson:"scheduled_date"`
	ScheduledStartTime time.Time  `bson:"scheduled_start_time"`
	ScheduledEndTime   time.Time  `bson:"scheduled_end_time"`
	Status             string     `bson:"status"`
	ExecutedAt         *time.Time `bson:"executed_at,omitempty"`
	CreatedAt          time.Time  `bson:"created_at"`
}

func newInstanceDoc(i *domain.ActionInstance) instanceDoc {
	return instanceDoc{
		ID:                 i.ID,
		ActionID:           i.ActionID,
		UserID:             i.UserID,
		ScheduledDate:      i.ScheduledDate,
		ScheduledStartTime: i.ScheduledStartTime,
		ScheduledEndTime:   i.ScheduledEndTime,
		Status:             string(i.Status),
		ExecutedAt:         i.ExecutedAt,
		CreatedAt:          i.CreatedAt,
	}
}

func (d instanceDoc) toDomain() domain.ActionInstance {
	return domain.ActionInstance{
		ID:                 d.ID,
		ActionID:           d.ActionID,
		UserID:             d.UserID,
		ScheduledDate:      d.ScheduledDate,
		ScheduledStartTime: d.ScheduledStartTime,
		ScheduledEndTime:   d.ScheduledEndTime,
		Status:             domain.InstanceStatus(d.Status),
		ExecutedAt:         d.ExecutedAt,
		CreatedAt:          d.CreatedAt,
	}
}

type auditDoc struct {
	ID           string    `bson:"_id"`
	Action       string    `bson:"action"`
	Details      string    `bson:"details"`
	TargetUserID string    `bson:"target_user_id"`
	ActorID      *string   `bson:"actor_id"`
	TraceID      string    `bson:"trace_id,omitempty"`
	Timestamp    time.Time `bson:"timestamp"`
}

type scoreDoc struct {
	UserID        string    `bson:"user_id"`
	Date          string    `bson:"date"`
	Score         int       `bson:"score"`
	ExecutionRate float64   `bson:"execution_rate"`
	OnTimeRate    float64   `bson:"on_time_rate"`
	ComputedAt    time.Time `bson:"computed_at"`
}
