package service

import (
	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
)

// ResolvePolicy walks the fallback chain for a user: the role's policy, then
// the org-scoped DEFAULT policy, then the compiled-in system defaults. It does
// no I/O; orgDefault is whatever context loading found (nil when none).
//
// A policy whose rules fail to parse yields the system defaults for this
// cycle. The error is logged, never returned.
func ResolvePolicy(user *domain.User, orgDefault *domain.Policy, log zerolog.Logger) domain.ResolvedPolicy {
	var (
		policy *domain.Policy
		source domain.PolicySource
	)
	switch {
	case user.Role != nil && user.Role.Policy != nil:
		policy, source = user.Role.Policy, domain.SourceRole
	case orgDefault != nil:
		policy, source = orgDefault, domain.SourceOrg
	}

	resolved := domain.ResolvedPolicy{
		Source: domain.SourceSystem,
		Rules:  domain.SystemDefaultRules(),
		Mode:   resolveMode(policy, user),
	}
	if policy == nil {
		return resolved
	}

	resolved.PolicyID = policy.ID
	rules, err := policy.ParseRules()
	if err != nil {
		log.Error().Err(err).
			Str("user_id", user.ID).
			Str("policy_id", policy.ID).
			Msg("malformed policy rules, using system defaults")
		return resolved
	}

	resolved.Source = source
	resolved.Rules = rules
	return resolved
}

func resolveMode(policy *domain.Policy, user *domain.User) domain.EnforcementMode {
	if policy != nil && policy.EnforcementMode.Valid() {
		return policy.EnforcementMode
	}
	if user.EnforcementMode.Valid() {
		return user.EnforcementMode
	}
	return domain.ModeNone
}
