package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertJSONResponse checks status and content type, then decodes into target
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockLockoutGate implements LockoutGate for testing and records the hook calls
type MockLockoutGate struct {
	Identity     string
	PreCheckFunc func(ctx context.Context, identity, username string) *services.BlockResult

	Failures  []string
	Successes []string
}

func (m *MockLockoutGate) ResolveIdentity(r *http.Request) string {
	if m.Identity != "" {
		return m.Identity
	}
	return pkghttp.ExtractClientIP(r, nil)
}

func (m *MockLockoutGate) PreCheck(ctx context.Context, identity, username string) *services.BlockResult {
	if m.PreCheckFunc != nil {
		return m.PreCheckFunc(ctx, identity, username)
	}
	return nil
}

func (m *MockLockoutGate) OnFailure(ctx context.Context, identity, username string) {
	m.Failures = append(m.Failures, identity+"|"+username)
}

func (m *MockLockoutGate) OnSuccess(ctx context.Context, identity, username string) {
	m.Successes = append(m.Successes, identity+"|"+username)
}

// MockCredentialVerifier implements CredentialVerifier for testing
type MockCredentialVerifier struct {
	VerifyFunc func(ctx context.Context, username, password string) error
	Calls      int
}

func (m *MockCredentialVerifier) Verify(ctx context.Context, username, password string) error {
	m.Calls++
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, username, password)
	}
	return models.ErrInvalidCredential
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.Err
}
