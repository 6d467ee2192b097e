package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	repo "github.com/aliskhannn/ielts-mock-engine/internal/repository"
)

const (
	ReasonFreeLimit = "free tier limit reached"
	ReasonCooldown  = "cooldown period has not elapsed"
)

// QuotaConfig holds tier limits.
type QuotaConfig struct {
	FreeLimits         map[entities.Module]int // finished attempts allowed per module on the free tier
	Cooldown           time.Duration           // wait between attempts for cooldown tiers
	EnterpriseCooldown bool                    // whether enterprise users are cooldown-bound
}

// DefaultQuotaConfig returns the standard limits.
func DefaultQuotaConfig() QuotaConfig {
	return QuotaConfig{
		FreeLimits: map[entities.Module]int{
			entities.ModuleListening: 5,
			entities.ModuleReading:   1,
			entities.ModuleWriting:   1,
		},
		Cooldown:           24 * time.Hour,
		EnterpriseCooldown: true,
	}
}

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed bool
	Reason  string
	RetryAt *time.Time
}

// Err converts a denial into a ConflictError, or nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &ConflictError{Err: ErrQuotaExceeded, Reason: d.Reason, RetryAt: d.RetryAt}
}

// QuotaPolicy decides per subscription tier whether a new attempt may start.
type QuotaPolicy struct {
	cfg QuotaConfig
}

// NewQuotaPolicy creates a new QuotaPolicy.
func NewQuotaPolicy(cfg QuotaConfig) *QuotaPolicy {
	return &QuotaPolicy{cfg: cfg}
}

// Cooldown returns the configured wait between attempts.
func (p *QuotaPolicy) Cooldown() time.Duration {
	return p.cfg.Cooldown
}

// CanStart checks the learner's tier against finished attempts and the cooldown marker.
// Unknown users are treated as free tier.
func (p *QuotaPolicy) CanStart(ctx context.Context, tx repo.Tx, userID string, module entities.Module, now time.Time) (Decision, error) {
	tier := entities.TierFree
	u, err := tx.Users().Get(ctx, userID)
	switch {
	case err == nil:
		tier = u.Tier
	case !errors.Is(err, repo.ErrNotFound):
		return Decision{}, fmt.Errorf("get user: %w", err)
	}

	switch tier {
	case entities.TierUnlimited:
		return Decision{Allowed: true}, nil

	case entities.TierPremium, entities.TierEnterprise:
		if tier == entities.TierEnterprise && !p.cfg.EnterpriseCooldown {
			return Decision{Allowed: true}, nil
		}
		a, err := tx.Analytics().Get(ctx, userID, module)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return Decision{Allowed: true}, nil
			}
			return Decision{}, fmt.Errorf("get analytics: %w", err)
		}
		if a.NextAllowedAttemptAt != nil && now.Before(*a.NextAllowedAttemptAt) {
			retryAt := *a.NextAllowedAttemptAt
			return Decision{Reason: ReasonCooldown, RetryAt: &retryAt}, nil
		}
		return Decision{Allowed: true}, nil

	default:
		limit := p.cfg.FreeLimits[module]
		if limit <= 0 {
			return Decision{Allowed: true}, nil
		}
		n, err := tx.Attempts().CountFinished(ctx, userID, module)
		if err != nil {
			return Decision{}, fmt.Errorf("count finished attempts: %w", err)
		}
		if n >= limit {
			return Decision{Reason: ReasonFreeLimit}, nil
		}
		return Decision{Allowed: true}, nil
	}
}
