package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/altovisual/artist-management-sub002/model"
)

type statusUpdate struct {
	code, email, status string
}

type fakeStatusLedger struct {
	documents []statusUpdate
	signers   []statusUpdate
	urls      map[string]string
	err       error
}

func (f *fakeStatusLedger) UpdateSignatureStatus(_ context.Context, code, email, status string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.signers = append(f.signers, statusUpdate{code, email, status})
	return true, nil
}

func (f *fakeStatusLedger) UpdateDocumentStatus(_ context.Context, code, status string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.documents = append(f.documents, statusUpdate{code: code, status: status})
	return 2, nil
}

func (f *fakeStatusLedger) SetDocumentURL(_ context.Context, code, url string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.urls == nil {
		f.urls = make(map[string]string)
	}
	f.urls[code] = url
	return 2, nil
}

func newWebhookRouter(h *WebhookHandler) *gin.Engine {
	router := gin.New()
	router.POST("/api/auco/webhook", h.HandleWebhook)
	router.GET("/api/auco/webhook", h.Status)
	return router
}

func postWebhook(router *gin.Engine, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/auco/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookAuthorization(t *testing.T) {
	router := newWebhookRouter(NewWebhookHandler(&fakeStatusLedger{}, "prk_secret"))

	tests := []struct {
		name           string
		auth           string
		expectedStatus int
	}{
		{"valid", "Bearer prk_secret", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"raw key", "prk_secret", http.StatusUnauthorized},
		{"wrong key", "Bearer prk_other", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postWebhook(router, tt.auth, `{"document_code":"DOC1"}`)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestWebhookWithoutTokenRejectsAll(t *testing.T) {
	router := newWebhookRouter(NewWebhookHandler(&fakeStatusLedger{}, ""))

	if w := postWebhook(router, "Bearer ", `{"document_code":"DOC1"}`); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestWebhookDocumentCompleted(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"event type", `{"document_code":"DOC1","event_type":"document.completed"}`},
		{"signed event", `{"document_code":"DOC1","event_type":"document.signed"}`},
		{"status", `{"document_code":"DOC1","status":"completed"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeStatusLedger{}
			router := newWebhookRouter(NewWebhookHandler(ledger, "tok"))

			w := postWebhook(router, "Bearer tok", tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if len(ledger.documents) != 1 || ledger.documents[0].status != model.SignatureCompleted {
				t.Errorf("Expected document marked completed, got %+v", ledger.documents)
			}
		})
	}
}

func TestWebhookSignerStatuses(t *testing.T) {
	ledger := &fakeStatusLedger{}
	router := newWebhookRouter(NewWebhookHandler(ledger, "tok"))

	body := `{"document_code":"DOC1","event_type":"signer.completed","signers":[
		{"email":" Ana@X.com ","status":"signed"},
		{"email":"luis@x.com","status":"rejected"},
		{"email":"","status":"signed"},
		{"email":"marta@x.com"},
		{"email":"pia@x.com","status":"pending"}
	]}`
	w := postWebhook(router, "Bearer tok", body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	if len(ledger.documents) != 0 {
		t.Error("Expected no document-wide update")
	}
	if len(ledger.signers) != 4 {
		t.Fatalf("Expected 4 signer updates, got %d", len(ledger.signers))
	}
	if ledger.signers[0].email != "ana@x.com" || ledger.signers[0].status != model.SignatureCompleted {
		t.Errorf("Unexpected update %+v", ledger.signers[0])
	}
	if ledger.signers[1].status != model.SignatureRejected {
		t.Errorf("Expected rejected, got %s", ledger.signers[1].status)
	}
	if ledger.signers[2].email != "marta@x.com" || ledger.signers[2].status != model.SignatureCompleted {
		t.Errorf("Expected signer.completed to complete a signer without status, got %+v", ledger.signers[2])
	}
	if ledger.signers[3].status != model.SignaturePending {
		t.Errorf("Expected explicit status kept, got %s", ledger.signers[3].status)
	}
}

func TestWebhookDocumentRejected(t *testing.T) {
	ledger := &fakeStatusLedger{}
	router := newWebhookRouter(NewWebhookHandler(ledger, "tok"))

	w := postWebhook(router, "Bearer tok", `{"document_code":"DOC1","event_type":"document.rejected"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if len(ledger.documents) != 1 || ledger.documents[0].status != model.SignatureRejected {
		t.Errorf("Expected document marked rejected, got %+v", ledger.documents)
	}
}

func TestWebhookStoresDocumentURL(t *testing.T) {
	ledger := &fakeStatusLedger{}
	router := newWebhookRouter(NewWebhookHandler(ledger, "tok"))

	body := `{"document_code":"DOC1","event_type":"document.completed","document_url":" https://files.auco.test/DOC1.pdf "}`
	w := postWebhook(router, "Bearer tok", body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got := ledger.urls["DOC1"]; got != "https://files.auco.test/DOC1.pdf" {
		t.Errorf("Expected document URL stored, got %q", got)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"document_url":"https://files.auco.test/DOC1.pdf"`)) {
		t.Errorf("Expected document URL echoed, got %s", w.Body.String())
	}

	ledger = &fakeStatusLedger{}
	router = newWebhookRouter(NewWebhookHandler(ledger, "tok"))
	postWebhook(router, "Bearer tok", `{"document_code":"DOC1","status":"completed"}`)
	if len(ledger.urls) != 0 {
		t.Errorf("Expected no URL update without document_url, got %v", ledger.urls)
	}
}

func TestWebhookBadRequests(t *testing.T) {
	router := newWebhookRouter(NewWebhookHandler(&fakeStatusLedger{}, "tok"))

	if w := postWebhook(router, "Bearer tok", `{"status":"completed"}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without document code, got %d", w.Code)
	}
	if w := postWebhook(router, "Bearer tok", `garbage`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid JSON, got %d", w.Code)
	}
}

func TestWebhookLedgerFailure(t *testing.T) {
	router := newWebhookRouter(NewWebhookHandler(&fakeStatusLedger{err: errors.New("db down")}, "tok"))

	w := postWebhook(router, "Bearer tok", `{"document_code":"DOC1","status":"completed"}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestWebhookStatus(t *testing.T) {
	router := newWebhookRouter(NewWebhookHandler(&fakeStatusLedger{}, "tok"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/auco/webhook", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(EventDocumentCompleted)) {
		t.Error("Expected supported events in response")
	}
}
