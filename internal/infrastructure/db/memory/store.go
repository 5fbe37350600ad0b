// Package memory is an in-process implementation of every repository port.
// It backs STORE=memory deployments and the service tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
	"github.com/disciplina/discipline-kernel/internal/core/ports"
)

var (
	_ ports.UserRepository     = (*Store)(nil)
	_ ports.PolicyRepository   = (*Store)(nil)
	_ ports.ActionRepository   = (*Store)(nil)
	_ ports.InstanceRepository = (*Store)(nil)
	_ ports.AuditRepository    = (*Store)(nil)
	_ ports.ScoreRepository    = (*Store)(nil)
)

type userRecord struct {
	user   domain.User
	roleID string
}

type roleRecord struct {
	id, name, policyID string
}

// Store keeps every collection in maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	users     map[string]userRecord
	roles     map[string]roleRecord
	policies  map[string]domain.Policy
	actions   map[string]domain.Action
	instances map[string]domain.ActionInstance
	byActDate map[string]string // action_id|date → instance id
	audit     []domain.AuditLog
	scores    map[string]domain.DisciplineScore // user_id|date
}

func NewStore() *Store {
	return &Store{
		users:     make(map[string]userRecord),
		roles:     make(map[string]roleRecord),
		policies:  make(map[string]domain.Policy),
		actions:   make(map[string]domain.Action),
		instances: make(map[string]domain.ActionInstance),
		byActDate: make(map[string]string),
		scores:    make(map[string]domain.DisciplineScore),
	}
}

// ── Seeding ───────────────────────────────────────────────────────────────────

func (s *Store) PutPolicy(p domain.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.ID] = p
}

// PutRole attaches policyID (may be empty) to a role.
func (s *Store) PutRole(id, name, policyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[id] = roleRecord{id: id, name: name, policyID: policyID}
}

// PutUser stores u under roleID (may be empty). u.Role is ignored.
func (s *Store) PutUser(u domain.User, roleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Role = nil
	s.users[u.ID] = userRecord{user: u, roleID: roleID}
}

func (s *Store) PutAction(a domain.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[a.ID] = a
}

// ── Users ─────────────────────────────────────────────────────────────────────

func (s *Store) GetUserWithPolicy(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u := rec.user
	if rec.user.LockedUntil != nil {
		lu := *rec.user.LockedUntil
		u.LockedUntil = &lu
	}
	if role, ok := s.roles[rec.roleID]; ok {
		u.Role = &domain.Role{ID: role.id, Name: role.name}
		if p, ok := s.policies[role.policyID]; ok {
			u.Role.Policy = &p
		}
	}
	return &u, nil
}

func (s *Store) UpdateUserScore(_ context.Context, userID string, score int, class domain.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	rec.user.CurrentScore = score
	rec.user.Classification = class
	rec.user.UpdatedAt = time.Now().UTC()
	s.users[userID] = rec
	return nil
}

func (s *Store) UpdateUserLock(_ context.Context, userID string, lockedUntil time.Time, ackRequired bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		return false, domain.ErrUserNotFound
	}
	if rec.user.LockCovers(lockedUntil) {
		return false, nil
	}
	rec.user.LockedUntil = &lockedUntil
	rec.user.AcknowledgmentRequired = ackRequired
	rec.user.UpdatedAt = time.Now().UTC()
	s.users[userID] = rec
	return true, nil
}

func (s *Store) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ── Policies & actions ────────────────────────────────────────────────────────

// GetDefaultOrgPolicy returns the ORG-scoped DEFAULT policy with the lowest
// id when more than one is stored.
func (s *Store) GetDefaultOrgPolicy(_ context.Context) (*domain.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Policy
	for _, p := range s.policies {
		if p.Scope != domain.ScopeOrg || p.Name != domain.DefaultPolicyName {
			continue
		}
		if found == nil || p.ID < found.ID {
			c := p
			found = &c
		}
	}
	if found == nil {
		return nil, domain.ErrPolicyNotFound
	}
	return found, nil
}

func (s *Store) ListActions(_ context.Context, userID string) ([]domain.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Action
	for _, a := range s.actions {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ── Instances ─────────────────────────────────────────────────────────────────

func (s *Store) ListInstances(_ context.Context, userID string, r domain.DateRange) ([]domain.ActionInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ActionInstance
	for _, inst := range s.instances {
		if inst.UserID == userID && r.Contains(inst.ScheduledDate) {
			out = append(out, cloneInstance(inst))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledStartTime.Before(out[j].ScheduledStartTime)
	})
	return out, nil
}

func (s *Store) InstanceExists(_ context.Context, actionID, date string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byActDate[actDateKey(actionID, date)]
	return ok, nil
}

func (s *Store) CreateInstance(_ context.Context, inst *domain.ActionInstance) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := actDateKey(inst.ActionID, inst.ScheduledDate)
	if _, dup := s.byActDate[key]; dup {
		return "", domain.ErrDuplicateInstance
	}
	s.instances[inst.ID] = cloneInstance(*inst)
	s.byActDate[key] = inst.ID
	return inst.ID, nil
}

func (s *Store) BulkMarkMissed(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range ids {
		inst, ok := s.instances[id]
		if !ok || !inst.Status.CanTransitionTo(domain.StatusMissed) {
			continue
		}
		inst.Status = domain.StatusMissed
		s.instances[id] = inst
		n++
	}
	return n, nil
}

func (s *Store) GetInstance(_ context.Context, id string) (*domain.ActionInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instances[id]
	if !ok {
		return nil, domain.ErrInstanceNotFound
	}
	c := cloneInstance(inst)
	return &c, nil
}

func (s *Store) MarkExecuted(_ context.Context, id string, status domain.InstanceStatus, executedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[id]
	if !ok {
		return false, domain.ErrInstanceNotFound
	}
	if inst.Status != domain.StatusPending {
		return false, nil
	}
	inst.Status = status
	inst.ExecutedAt = &executedAt
	s.instances[id] = inst
	return true, nil
}

func (s *Store) ListOverdueInstances(_ context.Context, userID string, now time.Time) ([]domain.ActionInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ActionInstance
	for _, inst := range s.instances {
		if inst.UserID == userID && inst.IsOverdue(now) {
			out = append(out, cloneInstance(inst))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledStartTime.Before(out[j].ScheduledStartTime)
	})
	return out, nil
}

func (s *Store) ListOverdueUserIDs(_ context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, inst := range s.instances {
		if inst.IsOverdue(now) {
			seen[inst.UserID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ── Audit & scores ────────────────────────────────────────────────────────────

func (s *Store) AppendAuditLog(_ context.Context, entry *domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *entry)
	return nil
}

// AuditLogs returns a copy of every audit entry in write order.
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.audit)
}

func (s *Store) UpsertDailyScore(_ context.Context, sc domain.DisciplineScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[sc.UserID+"|"+sc.Date] = sc
	return nil
}

// DailyScore returns the snapshot for (userID, date), if any.
func (s *Store) DailyScore(userID, date string) (domain.DisciplineScore, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scores[userID+"|"+date]
	return sc, ok
}

// Ping satisfies readiness checks.
func (s *Store) Ping(context.Context) error { return nil }

func actDateKey(actionID, date string) string {
	return actionID + "|" + date
}

func cloneInstance(i domain.ActionInstance) domain.ActionInstance {
	if i.ExecutedAt != nil {
		t := *i.ExecutedAt
		i.ExecutedAt = &t
	}
	return i
}
