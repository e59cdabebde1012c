package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/metrics"
	"github.com/BradenHooton/gatekeeper/internal/models"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

const (
	// UsernameWindow is the fixed window of the username-only layer
	UsernameWindow = 60 * time.Minute
	// RetentionHorizon is how long attempt records are kept regardless of lockout windows
	RetentionHorizon = 24 * time.Hour
)

// AttemptRepository defines the attempt store operations the gate needs
type AttemptRepository interface {
	InsertAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	CountAttempts(ctx context.Context, q models.AttemptQuery) (int, error)
	LatestAttempt(ctx context.Context, q models.AttemptQuery) (*time.Time, error)
	DeleteAttempts(ctx context.Context, identity, credentialKey string) (int64, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SecurityEventEmitter receives security events raised by the gate
type SecurityEventEmitter interface {
	Emit(ctx context.Context, event *models.SecurityEvent)
}

// LockoutConfig is an immutable snapshot of the gate settings
type LockoutConfig struct {
	Enabled                bool
	MaxAttemptsPerIP       int
	LockoutDuration        time.Duration
	MaxAttemptsPerUsername int
	TrustedProxies         []string
}

// DefaultLockoutConfig returns the documented defaults
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		Enabled:                true,
		MaxAttemptsPerIP:       5,
		LockoutDuration:        10 * time.Minute,
		MaxAttemptsPerUsername: 10,
	}
}

// BlockResult is returned by PreCheck when the attempt must not proceed
type BlockResult struct {
	Message           string
	RetryAfterMinutes int
	Layer             string
}

// LockoutService decides whether login attempts may proceed and records their outcome.
// It holds no mutable state; the attempt store is the only shared resource.
type LockoutService struct {
	repo     AttemptRepository
	events   SecurityEventEmitter
	config   LockoutConfig
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
	env      string
	now      func() time.Time
}

// NewLockoutService creates a new LockoutService. The lockout window is
// capped at the retention horizon; a non-positive window falls back to the default.
func NewLockoutService(repo AttemptRepository, events SecurityEventEmitter, config LockoutConfig, logger *slog.Logger, env string) *LockoutService {
	proxies := append([]string(nil), config.TrustedProxies...)
	config.TrustedProxies = proxies

	switch {
	case config.LockoutDuration <= 0:
		logger.Warn("invalid lockout duration, using default",
			slog.Duration("configured", config.LockoutDuration),
			slog.Duration("lockout_duration", DefaultLockoutConfig().LockoutDuration))
		config.LockoutDuration = DefaultLockoutConfig().LockoutDuration
	case config.LockoutDuration > RetentionHorizon:
		logger.Warn("lockout duration exceeds retention horizon, capping",
			slog.Duration("configured", config.LockoutDuration),
			slog.Duration("lockout_duration", RetentionHorizon))
		config.LockoutDuration = RetentionHorizon
	}

	return &LockoutService{
		repo:     repo,
		events:   events,
		config:   config,
		ipConfig: &pkghttp.IPConfig{TrustedProxies: proxies},
		logger:   logger,
		env:      env,
		now:      time.Now,
	}
}

// WithClock replaces the time source, used by tests
func (s *LockoutService) WithClock(now func() time.Time) *LockoutService {
	s.now = now
	return s
}

// Config returns the settings snapshot the service was built with
func (s *LockoutService) Config() LockoutConfig {
	return s.config
}

// ResolveIdentity returns the rate-limit identity for a request
func (s *LockoutService) ResolveIdentity(r *http.Request) string {
	return pkghttp.ExtractClientIP(r, s.ipConfig)
}

// PreCheck runs before credentials are verified. A nil result means proceed.
func (s *LockoutService) PreCheck(ctx context.Context, identity, username string) *BlockResult {
	decision := s.Decide(ctx, identity, username)
	if decision.Allowed {
		metrics.LoginDecisions.WithLabelValues("allowed", models.LayerNone).Inc()
		return nil
	}

	metrics.LoginDecisions.WithLabelValues("blocked", decision.Layer).Inc()
	return &BlockResult{
		Message:           LockoutMessage(decision.RetryAfterMinutes),
		RetryAfterMinutes: decision.RetryAfterMinutes,
		Layer:             decision.Layer,
	}
}

// Decide evaluates the lockout layers in order; the first blocking layer wins.
// Store read errors fail open.
func (s *LockoutService) Decide(ctx context.Context, identity, username string) models.Decision {
	if !s.config.Enabled {
		return models.Allow()
	}

	now := s.now()

	// 1. Combined layer: identity OR username inside the lockout window
	ipQuery := models.AttemptQuery{
		Match:         models.MatchIdentityOrCredential,
		Identity:      identity,
		CredentialKey: username,
		Since:         windowStart(now, s.config.LockoutDuration),
	}
	if decision, blocked := s.evaluateLayer(ctx, ipQuery, s.config.MaxAttemptsPerIP, s.config.LockoutDuration, models.LayerIP, now); blocked {
		s.logger.Warn("login blocked",
			slog.String("layer", models.LayerIP),
			slog.String("ip_address", identity),
			pkglogger.CredentialAttr("username", username, s.env),
			slog.Int("failed_attempts", decision.Attempts),
			slog.Int("retry_after_minutes", decision.RetryAfterMinutes))
		return decision
	}

	// 2. Username layer: one username attacked from many identities
	userQuery := models.AttemptQuery{
		Match:         models.MatchCredential,
		CredentialKey: username,
		Since:         windowStart(now, UsernameWindow),
	}
	if decision, blocked := s.evaluateLayer(ctx, userQuery, s.config.MaxAttemptsPerUsername, UsernameWindow, models.LayerUsername, now); blocked {
		s.logger.Warn("login blocked: possible distributed brute force",
			slog.String("layer", models.LayerUsername),
			slog.String("ip_address", identity),
			pkglogger.CredentialAttr("username", username, s.env),
			slog.Int("failed_attempts", decision.Attempts),
			slog.Int("retry_after_minutes", decision.RetryAfterMinutes))
		return decision
	}

	return models.Allow()
}

func (s *LockoutService) evaluateLayer(ctx context.Context, q models.AttemptQuery, threshold int, window time.Duration, layer string, now time.Time) (models.Decision, bool) {
	count, err := s.repo.CountAttempts(ctx, q)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("count").Inc()
		s.logger.Error("failed to count login attempts, allowing attempt",
			slog.String("layer", layer),
			slog.Any("error", err))
		return models.Decision{}, false
	}

	if count < threshold {
		return models.Decision{}, false
	}

	retryAfter := s.retryAfterMinutes(ctx, q, window, now)
	if retryAfter <= 0 {
		return models.Decision{}, false
	}

	return models.Decision{
		Allowed:           false,
		Layer:             layer,
		Attempts:          count,
		RetryAfterMinutes: retryAfter,
	}, true
}

// retryAfterMinutes computes the remaining lock time from the most recent
// matching attempt, rounded up to whole minutes
func (s *LockoutService) retryAfterMinutes(ctx context.Context, q models.AttemptQuery, window time.Duration, now time.Time) int {
	latest, err := s.repo.LatestAttempt(ctx, q)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("latest").Inc()
		s.logger.Error("failed to get latest login attempt, allowing attempt", slog.Any("error", err))
		return 0
	}
	if latest == nil {
		return 0
	}

	return ceilMinutes(latest.Add(window).Sub(now))
}

func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Add(-window)
}

func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}

// LockoutMessage is the user-facing block message. It never says whether the account exists.
func LockoutMessage(minutes int) string {
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}
	return fmt.Sprintf("Too many failed login attempts. Please try again in %d %s.", minutes, unit)
}

// OnFailure records a failed attempt, purges expired records and raises a
// distributed brute force event when the username layer threshold is crossed.
// Store errors are logged and swallowed.
func (s *LockoutService) OnFailure(ctx context.Context, identity, username string) {
	if !s.config.Enabled {
		return
	}

	now := s.now()

	attempt := &models.LoginAttempt{
		Identity:      identity,
		CredentialKey: username,
		OccurredAt:    now,
	}
	inserted := true
	if err := s.repo.InsertAttempt(ctx, attempt); err != nil {
		inserted = false
		metrics.StoreErrors.WithLabelValues("insert").Inc()
		s.logger.Error("failed to record login attempt",
			slog.String("ip_address", identity),
			slog.Any("error", err))
	} else {
		metrics.FailedAttemptsRecorded.Inc()
	}

	s.purgeExpired(ctx, now)

	if inserted {
		s.detectDistributedAttack(ctx, identity, username, now)
	}
}

func (s *LockoutService) purgeExpired(ctx context.Context, now time.Time) {
	purged, err := s.repo.PurgeOlderThan(ctx, now.Add(-RetentionHorizon))
	if err != nil {
		metrics.StoreErrors.WithLabelValues("purge").Inc()
		s.logger.Error("failed to purge expired login attempts", slog.Any("error", err))
		return
	}
	if purged > 0 {
		metrics.AttemptsPurged.Add(float64(purged))
		s.logger.Debug("purged expired login attempts", slog.Int64("rows_deleted", purged))
	}
}

// detectDistributedAttack emits once, at the failure that brings the username
// count exactly to the threshold
func (s *LockoutService) detectDistributedAttack(ctx context.Context, identity, username string, now time.Time) {
	if s.events == nil {
		return
	}

	count, err := s.repo.CountAttempts(ctx, models.AttemptQuery{
		Match:         models.MatchCredential,
		CredentialKey: username,
		Since:         now.Add(-UsernameWindow),
	})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("count").Inc()
		s.logger.Error("failed to count username attempts", slog.Any("error", err))
		return
	}

	if count != s.config.MaxAttemptsPerUsername {
		return
	}

	s.events.Emit(ctx, models.NewDistributedBruteForceEvent(
		username,
		count,
		int(UsernameWindow/time.Minute),
		identity,
		now,
	))
}

// OnSuccess forgives only the exact identity and username pair that just logged in
func (s *LockoutService) OnSuccess(ctx context.Context, identity, username string) {
	if !s.config.Enabled {
		return
	}

	deleted, err := s.repo.DeleteAttempts(ctx, identity, username)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("delete").Inc()
		s.logger.Error("failed to clear login attempts",
			slog.String("ip_address", identity),
			slog.Any("error", err))
		return
	}

	if deleted > 0 {
		metrics.AttemptsCleared.Add(float64(deleted))
		s.logger.Info("cleared login attempts after successful login",
			slog.String("ip_address", identity),
			pkglogger.CredentialAttr("username", username, s.env),
			slog.Int64("rows_deleted", deleted))
	}
}
