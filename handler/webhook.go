package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/altovisual/artist-management-sub002/model"
	"github.com/altovisual/artist-management-sub002/pkg/logger"
)

// Webhook events the ledger reacts to
const (
	EventDocumentCompleted = "document.completed"
	EventDocumentSigned    = "document.signed"
	EventDocumentRejected  = "document.rejected"
	EventSignerCompleted   = "signer.completed"
)

// StatusLedger applies provider status changes to the signature ledger
type StatusLedger interface {
	UpdateSignatureStatus(ctx context.Context, documentCode, signerEmail, status string) (bool, error)
	UpdateDocumentStatus(ctx context.Context, documentCode, status string) (int64, error)
	SetDocumentURL(ctx context.Context, documentCode, url string) (int64, error)
}

type WebhookHandler struct {
	ledger StatusLedger
	token  string
}

func NewWebhookHandler(ledger StatusLedger, token string) *WebhookHandler {
	return &WebhookHandler{ledger: ledger, token: token}
}

// WebhookRequest is the provider's document notification
type WebhookRequest struct {
	DocumentCode string `json:"document_code"`
	Status       string `json:"status"`
	EventType    string `json:"event_type"`
	DocumentURL  string `json:"document_url"`
	Signers      []struct {
		Email  string `json:"email"`
		Status string `json:"status"`
	} `json:"signers"`
}

// authorized compares the bearer token in constant time
func (h *WebhookHandler) authorized(c *gin.Context) bool {
	if h.token == "" {
		return false
	}
	expected := "Bearer " + h.token
	got := c.GetHeader("Authorization")
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// HandleWebhook receives provider notifications and updates the ledger
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	if !h.authorized(c) {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized", Code: "unauthorized"})
		return
	}

	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", err.Error())
		return
	}
	code := strings.TrimSpace(req.DocumentCode)
	if code == "" {
		badRequest(c, "document_code is required", "")
		return
	}

	ctx := c.Request.Context()
	logger.Info(ctx, "provider webhook received", "document_code", code, "event_type", req.EventType, "status", req.Status)

	var updated int64
	if status := documentStatus(&req); status != "" {
		n, err := h.ledger.UpdateDocumentStatus(ctx, code, status)
		if err != nil {
			writeError(c, err)
			return
		}
		updated += n
	}

	documentURL := strings.TrimSpace(req.DocumentURL)
	if documentURL != "" {
		if _, err := h.ledger.SetDocumentURL(ctx, code, documentURL); err != nil {
			writeError(c, err)
			return
		}
	}

	for _, s := range req.Signers {
		email := strings.ToLower(strings.TrimSpace(s.Email))
		status := s.Status
		if status == "" && req.EventType == EventSignerCompleted {
			status = model.SignatureCompleted
		}
		if email == "" || status == "" {
			continue
		}
		changed, err := h.ledger.UpdateSignatureStatus(ctx, code, email, model.MapProviderStatus(status))
		if err != nil {
			writeError(c, err)
			return
		}
		if changed {
			updated++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"document_code": code,
		"event_type":    req.EventType,
		"updated":       updated,
		"document_url":  documentURL,
		"processed_at":  time.Now().UTC().Format(time.RFC3339),
	})
}

// documentStatus returns the status a notification sets on every signer of
// the document, or "" when it only concerns individual signers
func documentStatus(req *WebhookRequest) string {
	switch req.EventType {
	case EventDocumentCompleted, EventDocumentSigned:
		return model.SignatureCompleted
	case EventDocumentRejected:
		return model.SignatureRejected
	}
	switch model.MapProviderStatus(req.Status) {
	case model.SignatureCompleted:
		return model.SignatureCompleted
	case model.SignatureRejected:
		return model.SignatureRejected
	}
	return ""
}

// Status reports that the webhook endpoint is live
func (h *WebhookHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "active",
		"webhook_url": c.FullPath(),
		"supported_events": []string{
			EventDocumentCompleted,
			EventDocumentSigned,
			EventDocumentRejected,
			EventSignerCompleted,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
