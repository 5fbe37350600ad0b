package memory

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
)

// Seed is the fixture document accepted by LoadSeed.
type Seed struct {
	Policies []struct {
		ID              string `yaml:"id"`
		Name            string `yaml:"name"`
		Scope           string `yaml:"scope"`
		EnforcementMode string `yaml:"enforcement_mode"`
		// Rules is kept raw; it is parsed at resolution time like a stored policy.
		Rules string `yaml:"rules"`
	} `yaml:"policies"`
	Roles []struct {
		ID       string `yaml:"id"`
		Name     string `yaml:"name"`
		PolicyID string `yaml:"policy_id"`
	} `yaml:"roles"`
	Users []struct {
		ID              string `yaml:"id"`
		Email           string `yaml:"email"`
		RoleID          string `yaml:"role_id"`
		CurrentScore    *int   `yaml:"current_score"`
		EnforcementMode string `yaml:"enforcement_mode"`
	} `yaml:"users"`
	Actions []struct {
		ID                    string `yaml:"id"`
		UserID                string `yaml:"user_id"`
		Title                 string `yaml:"title"`
		FrequencyRule         string `yaml:"frequency_rule"`
		WindowStartTime       string `yaml:"window_start_time"`
		WindowDurationMinutes int    `yaml:"window_duration_minutes"`
		IsStrict              bool   `yaml:"is_strict"`
		Archived              bool   `yaml:"archived"`
	} `yaml:"actions"`
}

// LoadSeedFile reads a YAML fixture file into s.
func (s *Store) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	return s.LoadSeed(data)
}

// LoadSeed applies a YAML fixture document. Users without a current_score
// start at the neutral score.
func (s *Store) LoadSeed(data []byte) error {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}

	now := time.Now().UTC()
	for _, p := range seed.Policies {
		s.PutPolicy(domain.Policy{
			ID:              p.ID,
			Name:            p.Name,
			Scope:           domain.PolicyScope(p.Scope),
			EnforcementMode: domain.EnforcementMode(p.EnforcementMode),
			RawRules:        p.Rules,
		})
	}
	for _, r := range seed.Roles {
		s.PutRole(r.ID, r.Name, r.PolicyID)
	}
	for _, u := range seed.Users {
		score := domain.NeutralScore
		if u.CurrentScore != nil {
			score = *u.CurrentScore
		}
		s.PutUser(domain.User{
			ID:              u.ID,
			Email:           u.Email,
			CurrentScore:    score,
			Classification:  domain.Classify(score),
			EnforcementMode: domain.EnforcementMode(u.EnforcementMode),
			CreatedAt:       now,
			UpdatedAt:       now,
		}, u.RoleID)
	}
	for _, a := range seed.Actions {
		s.PutAction(domain.Action{
			ID:                    a.ID,
			UserID:                a.UserID,
			Title:                 a.Title,
			FrequencyRule:         a.FrequencyRule,
			WindowStartTime:       a.WindowStartTime,
			WindowDurationMinutes: a.WindowDurationMinutes,
			IsStrict:              a.IsStrict,
			Archived:              a.Archived,
			CreatedAt:             now,
		})
	}
	return nil
}
