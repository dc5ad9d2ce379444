package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/altovisual/artist-management-sub002/config"
	"github.com/altovisual/artist-management-sub002/middleware"
	"github.com/altovisual/artist-management-sub002/model"
	"github.com/altovisual/artist-management-sub002/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPipeline struct{}

func (stubPipeline) StartSignature(context.Context, string) (*service.DispatchResult, error) {
	return &service.DispatchResult{DocumentCode: "DOC1", SessionCode: "DOC1S1", SignerIDs: []string{"S1"}}, nil
}

func (stubPipeline) Preview(context.Context, string) (string, error) {
	return "<p>preview</p>", nil
}

type stubReconciler struct{}

func (stubReconciler) LocalEntries(context.Context, service.SignatureFilter) ([]model.SignatureEntry, error) {
	return nil, nil
}

func (stubReconciler) ProviderDocuments(context.Context) ([]service.ProviderDocument, error) {
	return nil, nil
}

func (stubReconciler) Reconcile(context.Context, service.ReconcileOptions) (*service.ReconcileReport, error) {
	return &service.ReconcileReport{}, nil
}

type stubLedger struct{}

func (stubLedger) UpdateSignatureStatus(context.Context, string, string, string) (bool, error) {
	return true, nil
}

func (stubLedger) UpdateDocumentStatus(context.Context, string, string) (int64, error) {
	return 1, nil
}

func (stubLedger) SetDocumentURL(context.Context, string, string) (int64, error) {
	return 1, nil
}

func testRouter() (*gin.Engine, *config.Config) {
	cfg := &config.Config{
		Auth: config.AuthConfig{JWTSecret: "test-secret", TokenExpireHours: 1},
		Auco: config.AucoConfig{WebhookToken: "hook"},
	}
	return newRouter(cfg, routerDeps{
		pipeline:   stubPipeline{},
		reconciler: stubReconciler{},
		ledger:     stubLedger{},
	}), cfg
}

func bearer(t *testing.T, cfg *config.Config, role string) string {
	t.Helper()
	token, _, err := middleware.GenerateToken("tester", role, &cfg.Auth)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	return "Bearer " + token
}

func TestRouterRoutes(t *testing.T) {
	router, cfg := testRouter()
	operator := bearer(t, cfg, middleware.RoleOperator)
	admin := bearer(t, cfg, middleware.RoleAdmin)

	tests := []struct {
		name           string
		method, path   string
		auth           string
		expectedStatus int
	}{
		{"health", "GET", "/health", "", http.StatusOK},
		{"metrics", "GET", "/metrics", "", http.StatusOK},
		{"start without token", "POST", "/api/contracts/ctr-1/signature", "", http.StatusUnauthorized},
		{"start", "POST", "/api/contracts/ctr-1/signature", operator, http.StatusOK},
		{"preview", "GET", "/api/contracts/ctr-1/preview", operator, http.StatusOK},
		{"list", "GET", "/api/signatures", operator, http.StatusOK},
		{"provider documents", "GET", "/api/signatures/provider-documents", operator, http.StatusOK},
		{"reconcile as operator", "POST", "/api/signatures/reconcile", operator, http.StatusForbidden},
		{"reconcile as admin", "POST", "/api/signatures/reconcile", admin, http.StatusOK},
		{"webhook", "POST", "/api/auco/webhook", "Bearer hook", http.StatusBadRequest},
		{"webhook wrong token", "POST", "/api/auco/webhook", operator, http.StatusUnauthorized},
		{"webhook status", "GET", "/api/auco/webhook", "", http.StatusOK},
		{"me", "GET", "/api/auth/me", admin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestRouterCORS(t *testing.T) {
	router, _ := testRouter()

	req := httptest.NewRequest("OPTIONS", "/api/signatures", nil)
	req.Header.Set("Origin", "https://label.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected preflight status 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Expected any origin, got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://label.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	exposed := strings.ToLower(w.Header().Get("Access-Control-Expose-Headers"))
	if !strings.Contains(exposed, strings.ToLower(middleware.RequestIDHeader)) {
		t.Errorf("Expected request id to be exposed, got %q", w.Header().Get("Access-Control-Expose-Headers"))
	}
}
