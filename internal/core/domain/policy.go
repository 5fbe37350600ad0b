package domain

import (
	"encoding/json"
	"fmt"
)

// EnforcementMode governs whether violations produce consequences.
type EnforcementMode string

const (
	ModeNone EnforcementMode = "NONE"
	ModeSoft EnforcementMode = "SOFT"
	ModeHard EnforcementMode = "HARD"
)

// Valid reports whether m is one of the known modes.
func (m EnforcementMode) Valid() bool {
	switch m {
	case ModeNone, ModeSoft, ModeHard:
		return true
	}
	return false
}

// PolicyScope says whether a policy is attached to a role or is an org default.
type PolicyScope string

const (
	ScopeOrg  PolicyScope = "ORG"
	ScopeRole PolicyScope = "ROLE"
)

// DefaultPolicyName is the name of the org-scoped fallback policy.
const DefaultPolicyName = "DEFAULT"

// Rules are the tunables a policy may override.
type Rules struct {
	MaxMisses      int `json:"max_misses"      bson:"max_misses"      yaml:"max_misses"`
	ScoreThreshold int `json:"score_threshold" bson:"score_threshold" yaml:"score_threshold"`
	LockoutHours   int `json:"lockout_hours"   bson:"lockout_hours"   yaml:"lockout_hours"`
}

// SystemDefaultRules applies when no policy resolves or a policy is malformed.
func SystemDefaultRules() Rules {
	return Rules{MaxMisses: 3, ScoreThreshold: 50, LockoutHours: 24}
}

// Policy is stored with its rules as raw structured data; parsing happens at
// resolution time so a malformed document never blocks loading.
type Policy struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Scope           PolicyScope     `json:"scope"`
	EnforcementMode EnforcementMode `json:"enforcement_mode"`
	RawRules        string          `json:"rules"`
}

// ParseRules merges the policy's rules over the system defaults. Keys absent
// from the document keep their default value.
func (p *Policy) ParseRules() (Rules, error) {
	rules := SystemDefaultRules()
	if p.RawRules == "" {
		return rules, nil
	}

	var overrides map[string]json.RawMessage
	if err := json.Unmarshal([]byte(p.RawRules), &overrides); err != nil {
		return SystemDefaultRules(), fmt.Errorf("parse policy %s rules: %w", p.ID, err)
	}

	fields := map[string]*int{
		"max_misses":      &rules.MaxMisses,
		"score_threshold": &rules.ScoreThreshold,
		"lockout_hours":   &rules.LockoutHours,
	}
	for key, raw := range overrides {
		dst, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return SystemDefaultRules(), fmt.Errorf("parse policy %s rule %q: %w", p.ID, key, err)
		}
	}
	return rules, nil
}

// ResolvedPolicy is what the kernel works with for the duration of a cycle.
type ResolvedPolicy struct {
	PolicyID string
	Source   PolicySource
	Rules    Rules
	Mode     EnforcementMode
}

// PolicySource records which link of the fallback chain produced the rules.
type PolicySource string

const (
	SourceRole   PolicySource = "ROLE"
	SourceOrg    PolicySource = "ORG_DEFAULT"
	SourceSystem PolicySource = "SYSTEM"
)
