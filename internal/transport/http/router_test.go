package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/school-notify-api/internal/config"
	"github.com/school-notify-api/internal/domain"
	jwtinfra "github.com/school-notify-api/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- in-memory stores ---

type memIdentities struct {
	mu   sync.Mutex
	byID map[string]domain.Identity
}

func (m *memIdentities) Create(_ context.Context, i *domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[i.ID]; ok {
		return fmt.Errorf("identity exists: %w", domain.ErrConflict)
	}
	m.byID[i.ID] = *i
	return nil
}

func (m *memIdentities) Get(_ context.Context, id string) (*domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("identity not found: %w", domain.ErrNotFound)
	}
	return &i, nil
}

func (m *memIdentities) UpdateCredential(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("identity not found: %w", domain.ErrNotFound)
	}
	i.CredentialHash = hash
	m.byID[id] = i
	return nil
}

func (m *memIdentities) ListIDsByKind(_ context.Context, kind domain.IdentityKind) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, i := range m.byID {
		if i.Kind == kind {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type memRegistrations struct {
	mu       sync.Mutex
	byID     map[string]domain.Registration
	bindings map[string]string
}

func (m *memRegistrations) Get(_ context.Context, id string) (*domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("registration not found: %w", domain.ErrNotFound)
	}
	return &r, nil
}

func (m *memRegistrations) BatchGet(_ context.Context, ids []string) (map[string]domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]domain.Registration{}
	for _, id := range ids {
		if r, ok := m.byID[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func (m *memRegistrations) BindAddress(_ context.Context, id, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, ok := m.bindings[address]; ok && owner != id {
		return fmt.Errorf("push token is already assigned to another user: %w", domain.ErrConflict)
	}
	r := m.byID[id]
	if r.DeliveryAddress != "" && r.DeliveryAddress != address {
		delete(m.bindings, r.DeliveryAddress)
	}
	r.RecipientID = id
	r.DeliveryAddress = address
	m.byID[id] = r
	m.bindings[address] = id
	return nil
}

func (m *memRegistrations) SetChildren(_ context.Context, id string, children []domain.Child) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.byID[id]
	r.RecipientID = id
	r.Children = children
	m.byID[id] = r
	return nil
}

func (m *memRegistrations) ListByChild(_ context.Context, childID string) ([]domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Registration
	for _, r := range m.byID {
		if _, ok := r.Child(childID); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type memLedger struct {
	mu      sync.Mutex
	records []domain.Notification
}

func (m *memLedger) PutBatch(_ context.Context, n []domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, n...)
	return nil
}

func (m *memLedger) ListByRecipient(_ context.Context, id string, limit int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if m.records[i].RecipientID == id && m.records[i].Sent {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *memLedger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type staticRoster []string

func (s staticRoster) IDs(context.Context) ([]string, error) { return s, nil }

func (s staticRoster) Contains(_ context.Context, id string) (bool, error) {
	for _, v := range s {
		if v == id {
			return true, nil
		}
	}
	return false, nil
}

type recordingProvider struct {
	mu   sync.Mutex
	sent []domain.PushMessage
}

func (p *recordingProvider) Name() string { return "test" }

func (p *recordingProvider) Send(_ context.Context, msg domain.PushMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	return nil
}

func (p *recordingProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

// --- harness ---

type harness struct {
	t      *testing.T
	srv    http.Handler
	ledger *memLedger
	push   *recordingProvider
}

func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")
	require.NoError(t, os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)}), 0600))
	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}), 0600))

	p, err := jwtinfra.NewProvider(&config.Config{JWTPrivateKeyPath: privPath, JWTPublicKeyPath: pubPath, JWTExpiry: time.Hour})
	require.NoError(t, err)
	return p
}

func newHarness(t *testing.T, roster ...string) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{t: t, ledger: &memLedger{}, push: &recordingProvider{}}
	cfg := &config.Config{
		AllowedOrigins: []string{"*"},
		LoginRateLimit: 100,
		LoginRateBurst: 100,
		Dispatch:       config.Dispatch{Concurrency: 4, APIKeys: []string{"dispatch-key"}},
	}
	h.srv = NewRouter(ctx, cfg, &Deps{
		IdentityRepo:     &memIdentities{byID: map[string]domain.Identity{}},
		RegistrationRepo: &memRegistrations{byID: map[string]domain.Registration{}, bindings: map[string]string{}},
		NotificationRepo: h.ledger,
		Roster:           staticRoster(roster),
		Push:             h.push,
		JWTProvider:      newTestJWTProvider(t),
	})
	return h
}

func (h *harness) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	switch {
	case token == "api-key":
		req.Header.Set("X-API-Key", "dispatch-key")
	case token != "":
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.srv.ServeHTTP(rr, req)
	return rr
}

func (h *harness) login(id, credential string) string {
	h.t.Helper()
	rr := h.do(http.MethodPost, "/v1/login", "", map[string]string{"id": id, "credential": credential})
	require.Equal(h.t, http.StatusOK, rr.Code, rr.Body.String())
	var env struct {
		Token string `json:"token"`
	}
	require.NoError(h.t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env.Token
}

// --- scenarios ---

func TestScenario_RegisterAndLogin(t *testing.T) {
	h := newHarness(t, "S100")

	rr := h.do(http.MethodPost, "/v1/register", "", map[string]string{"id": "S100", "credential": "pw1"})
	assert.Equal(t, http.StatusCreated, rr.Code)

	assert.NotEmpty(t, h.login("S100", "pw1"))

	rr = h.do(http.MethodPost, "/v1/login", "", map[string]string{"id": "S100", "credential": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = h.do(http.MethodPost, "/v1/register", "", map[string]string{"id": "S100", "credential": "pw1"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = h.do(http.MethodPost, "/v1/register", "", map[string]string{"id": "S555", "credential": "pw1"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestScenario_PushTokenCollision(t *testing.T) {
	h := newHarness(t, "S100", "S200")
	for _, id := range []string{"S100", "S200"} {
		require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/v1/register", "", map[string]string{"id": id, "credential": "pw"}).Code)
	}
	tok100, tok200 := h.login("S100", "pw"), h.login("S200", "pw")

	rr := h.do(http.MethodPost, "/v1/save-push-token", tok100, map[string]string{"id": "S100", "address": "tokA"})
	require.Equal(t, http.StatusOK, rr.Code)

	// Same address again for the same user is idempotent.
	rr = h.do(http.MethodPost, "/v1/save-push-token", tok100, map[string]string{"id": "S100", "address": "tokA"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(http.MethodPost, "/v1/save-push-token", tok200, map[string]string{"id": "S200", "address": "tokA"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// The original binding still delivers to S100.
	rr = h.do(http.MethodPost, "/v1/send-notifications", "api-key", map[string]interface{}{"ids": []string{"S100"}, "title": "T", "body": "B"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, h.push.count())
	assert.Equal(t, "tokA", h.push.sent[0].Address)
}

func TestScenario_InvalidRecipientBlocksDispatch(t *testing.T) {
	h := newHarness(t, "S100")
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/v1/register", "", map[string]string{"id": "S100", "credential": "pw"}).Code)
	tok := h.login("S100", "pw")
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/v1/save-push-token", tok, map[string]string{"id": "S100", "address": "tokA"}).Code)

	rr := h.do(http.MethodPost, "/v1/send-notifications", "api-key", map[string]interface{}{
		"ids": []string{"S100", "S999"}, "title": "T", "body": "B",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "S999")
	assert.Zero(t, h.ledger.count())
	assert.Zero(t, h.push.count())
}

func TestScenario_DispatchRequiresAPIKey(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodPost, "/v1/send-notifications", "", map[string]interface{}{"ids": []string{"S1"}, "title": "T", "body": "B"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestScenario_BroadcastAndHistory(t *testing.T) {
	h := newHarness(t, "S100", "S200", "S300")
	for _, id := range []string{"S100", "S200"} {
		require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/v1/register", "", map[string]string{"id": id, "credential": "pw"}).Code)
	}
	tok100 := h.login("S100", "pw")
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/v1/save-push-token", tok100, map[string]string{"id": "S100", "address": "tokA"}).Code)

	for _, title := range []string{"first", "second"} {
		rr := h.do(http.MethodPost, "/v1/notify-all-school-users", "api-key", map[string]string{"title": title, "body": "B"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var env struct {
			SentTo               int `json:"sentTo"`
			Skipped              int `json:"skipped"`
			TotalSchoolUsers     int `json:"totalSchoolUsers"`
			TotalRegisteredUsers int `json:"totalRegisteredUsers"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
		assert.Equal(t, 2, env.SentTo)
		assert.Equal(t, 1, env.Skipped)
		assert.Equal(t, 3, env.TotalSchoolUsers)
		assert.Equal(t, 2, env.TotalRegisteredUsers)
	}
	assert.Equal(t, 2, h.ledger.count())

	rr := h.do(http.MethodGet, "/v1/notifications/S100", tok100, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var history []domain.Notification
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, "second", history[0].Title)
	assert.Equal(t, "first", history[1].Title)

	rr = h.do(http.MethodGet, "/v1/notifications/S200", h.login("S200", "pw"), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestScenario_GuardianFanOut(t *testing.T) {
	h := newHarness(t, "S100")
	rr := h.do(http.MethodPost, "/v1/parents/register", "", map[string]string{"id": "P1", "credential": "pw", "name": "Parent One"})
	require.Equal(t, http.StatusCreated, rr.Code)
	tok := h.login("P1", "pw")

	rr = h.do(http.MethodPost, "/v1/notify", "api-key", map[string]string{"studentId": "S100", "title": "T", "body": "B"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/v1/parents/students", tok, map[string]string{"studentId": "S100", "studentName": "Ana"}).Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/v1/save-push-token", tok, map[string]string{"id": "P1", "address": "tokP"}).Code)

	rr = h.do(http.MethodPost, "/v1/notify", "api-key", map[string]string{"studentId": "S100", "title": "Absence", "body": "absent today"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, 1, h.push.count())
	assert.Equal(t, "Ana: absent today", h.push.sent[0].Body)
	assert.Equal(t, "S100", h.push.sent[0].Data["studentId"])
}

func TestScenario_StudentsRoutesAreParentOnly(t *testing.T) {
	h := newHarness(t, "S100")
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/v1/register", "", map[string]string{"id": "S100", "credential": "pw"}).Code)
	rr := h.do(http.MethodGet, "/v1/parents/students", h.login("S100", "pw"), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/health-check/ping", "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/health-check/ready", "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/metrics", "", nil).Code)
}
