package services

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/gatekeeper/internal/metrics"
	"github.com/BradenHooton/gatekeeper/internal/models"
)

// SecurityEventRepository persists security events
type SecurityEventRepository interface {
	Create(ctx context.Context, event *models.SecurityEvent) error
}

// SecurityEventService emits security events with a dual-write: an immediate
// slog record plus a best-effort database row when a repository is configured.
type SecurityEventService struct {
	repo   SecurityEventRepository
	logger *slog.Logger
}

// NewSecurityEventService creates a new SecurityEventService. repo may be nil
// for stores that have no relational sink (redis, sqlite).
func NewSecurityEventService(repo SecurityEventRepository, logger *slog.Logger) *SecurityEventService {
	return &SecurityEventService{
		repo:   repo,
		logger: logger,
	}
}

// Emit records a security event. Persistence failures are logged, never returned.
func (s *SecurityEventService) Emit(ctx context.Context, event *models.SecurityEvent) {
	metrics.SecurityEvents.WithLabelValues(event.EventType).Inc()

	s.logger.WarnContext(ctx, "security event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.EventType),
		slog.String("username", event.Username),
		slog.Int("attempts", event.Attempts),
		slog.Int("window_minutes", event.WindowMinutes),
		slog.String("ip_address", event.IPAddress),
	)

	if s.repo == nil {
		return
	}

	if err := s.repo.Create(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist security event",
			slog.String("event_type", event.EventType),
			slog.Any("error", err),
		)
	}
}
