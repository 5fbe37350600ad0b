package domain

import "time"

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Classification is the band a user's current score falls into.
type Classification string

const (
	ClassExemplary Classification = "EXEMPLARY"
	ClassReliable  Classification = "RELIABLE"
	ClassStable    Classification = "STABLE"
	ClassDrifting  Classification = "DRIFTING"
	ClassCritical  Classification = "CRITICAL"
)

// Classify maps a score in [0,100] to its band.
func Classify(score int) Classification {
	switch {
	case score >= 85:
		return ClassExemplary
	case score >= 70:
		return ClassReliable
	case score >= 50:
		return ClassStable
	case score >= 30:
		return ClassDrifting
	default:
		return ClassCritical
	}
}

// Role groups users under a shared policy.
type Role struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Policy *Policy `json:"policy,omitempty"`
}

// User models a person whose commitments are enforced by the kernel.
type User struct {
	ID                     string          `json:"id"`
	Email                  string          `json:"email,omitempty"`
	CurrentScore           int             `json:"current_score"`
	Classification         Classification  `json:"classification"`
	LockedUntil            *time.Time      `json:"locked_until,omitempty"`
	AcknowledgmentRequired bool            `json:"acknowledgment_required"`
	EnforcementMode        EnforcementMode `json:"enforcement_mode,omitempty"`
	Role                   *Role           `json:"role,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// IsLockedAt reports whether the user is locked at t.
func (u *User) IsLockedAt(t time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(t)
}

// LockCovers reports whether an existing lock already extends to target or beyond.
func (u *User) LockCovers(target time.Time) bool {
	return u.LockedUntil != nil && !u.LockedUntil.Before(target)
}
