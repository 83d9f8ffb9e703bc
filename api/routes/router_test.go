package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coachledger-backend/api/controllers"
	"github.com/angelmondragon/coachledger-backend/internal/balance"
	"github.com/angelmondragon/coachledger-backend/internal/ledger"
	pkgAuth "github.com/angelmondragon/coachledger-backend/pkg/auth"
	"github.com/angelmondragon/coachledger-backend/pkg/config"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubBalance struct {
	calls []uuid.UUID
}

func (s *stubBalance) Get(_ context.Context, coachID uuid.UUID, _ ledger.Period) (*balance.Balance, error) {
	s.calls = append(s.calls, coachID)
	return &balance.Balance{CoachID: coachID, Spendable: decimal.NewFromInt(750)}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "coachledger", ExpirationMinutes: 5},
	}
}

func newTestRouter(t *testing.T, health map[string]controllers.Pinger, svc Services) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	return NewRouter(cfg, logger.Nop(), prometheus.NewRegistry(), nil, health, svc), cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.Role, coachID uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.Mint(cfg.JWT, time.Now(), pkgAuth.Grant{CoachID: coachID, Role: role, JTI: uuid.NewString()})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func serve(h http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t, map[string]controllers.Pinger{"db": stubPinger{}}, Services{})

	if rec := serve(router, http.MethodGet, "/health/live", ""); rec.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", rec.Code)
	}
	if rec := serve(router, http.MethodGet, "/health/ready", ""); rec.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", rec.Code)
	}
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	router, _ := newTestRouter(t, map[string]controllers.Pinger{"redis": stubPinger{err: errors.New("down")}}, Services{})

	rec := serve(router, http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}

func TestPublicPingNeedsNoToken(t *testing.T) {
	router, _ := newTestRouter(t, nil, Services{})

	rec := serve(router, http.MethodGet, "/api/public/ping", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestCoachRoutesRequireCoachToken(t *testing.T) {
	router, cfg := newTestRouter(t, nil, Services{})

	if rec := serve(router, http.MethodGet, "/api/v1/coach/ping", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401 got %d", rec.Code)
	}
	admin := bearer(t, cfg, enums.RoleAdmin, uuid.Nil)
	if rec := serve(router, http.MethodGet, "/api/v1/coach/ping", admin); rec.Code != http.StatusForbidden {
		t.Fatalf("admin without coach: expected 403 got %d", rec.Code)
	}
	coachID := uuid.New()
	coach := bearer(t, cfg, enums.RoleCoach, coachID)
	rec := serve(router, http.MethodGet, "/api/v1/coach/ping", coach)
	if rec.Code != http.StatusOK {
		t.Fatalf("coach: expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), coachID.String()) {
		t.Fatalf("expected coach id echoed, got %s", rec.Body.String())
	}
}

func TestAdminRoutesRejectCoaches(t *testing.T) {
	router, cfg := newTestRouter(t, nil, Services{})

	coach := bearer(t, cfg, enums.RoleCoach, uuid.New())
	if rec := serve(router, http.MethodGet, "/api/admin/v1/ping", coach); rec.Code != http.StatusForbidden {
		t.Fatalf("coach: expected 403 got %d", rec.Code)
	}
	admin := bearer(t, cfg, enums.RoleAdmin, uuid.Nil)
	if rec := serve(router, http.MethodGet, "/api/admin/v1/ping", admin); rec.Code != http.StatusOK {
		t.Fatalf("admin: expected 200 got %d", rec.Code)
	}
}

func TestBalanceScopedByCaller(t *testing.T) {
	balances := &stubBalance{}
	router, cfg := newTestRouter(t, nil, Services{Balance: balances})

	self := uuid.New()
	other := uuid.New()

	rec := serve(router, http.MethodGet, "/api/v1/coach/balance", bearer(t, cfg, enums.RoleCoach, self))
	if rec.Code != http.StatusOK {
		t.Fatalf("coach balance: expected 200 got %d body=%s", rec.Code, rec.Body.String())
	}
	rec = serve(router, http.MethodGet, "/api/admin/v1/coaches/"+other.String()+"/balance", bearer(t, cfg, enums.RoleAdmin, uuid.Nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin balance: expected 200 got %d body=%s", rec.Code, rec.Body.String())
	}

	if len(balances.calls) != 2 || balances.calls[0] != self || balances.calls[1] != other {
		t.Fatalf("unexpected balance lookups %v", balances.calls)
	}

	var envelope struct {
		Data balance.Balance `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !envelope.Data.Spendable.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("unexpected spendable %s", envelope.Data.Spendable)
	}
}

func TestMetricsEndpointExposesHTTPCounters(t *testing.T) {
	router, _ := newTestRouter(t, nil, Services{})

	serve(router, http.MethodGet, "/api/public/ping", "")
	rec := serve(router, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="/api/public/ping"`) {
		t.Fatalf("expected ping route in metrics output:\n%s", rec.Body.String())
	}
}
