package services_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestSecurityEventService_Emit(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	repo := &services.MockSecurityEventRepository{}
	svc := services.NewSecurityEventService(repo, logger)

	event := models.NewDistributedBruteForceEvent("alice", 10, 60, "203.0.113.10", testNow)
	svc.Emit(context.Background(), event)

	assert.Len(t, repo.Created, 1)
	assert.Contains(t, buf.String(), `"event_type":"distributed_brute_force_detected"`)
	assert.Contains(t, buf.String(), `"window_minutes":60`)
}

func TestSecurityEventService_EmitWithoutRepository(t *testing.T) {
	var buf bytes.Buffer
	svc := services.NewSecurityEventService(nil, slog.New(slog.NewJSONHandler(&buf, nil)))

	assert.NotPanics(t, func() {
		svc.Emit(context.Background(), models.NewDistributedBruteForceEvent("alice", 10, 60, "203.0.113.10", testNow))
	})
	assert.Contains(t, buf.String(), "security event")
}

func TestSecurityEventService_PersistFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	repo := &services.MockSecurityEventRepository{
		CreateFunc: func(ctx context.Context, event *models.SecurityEvent) error {
			return errors.New("connection refused")
		},
	}
	svc := services.NewSecurityEventService(repo, slog.New(slog.NewJSONHandler(&buf, nil)))

	svc.Emit(context.Background(), models.NewDistributedBruteForceEvent("alice", 10, 60, "203.0.113.10", testNow))

	assert.Contains(t, buf.String(), "failed to persist security event")
	assert.Contains(t, buf.String(), "connection refused")
}
