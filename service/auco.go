package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/altovisual/artist-management-sub002/config"
	"github.com/altovisual/artist-management-sub002/pkg/logger"
	"github.com/altovisual/artist-management-sub002/pkg/metrics"
)

const (
	publicKeyPrefix  = "puk_"
	privateKeyPrefix = "prk_"
)

// SignatureProvider is the e-signature provider as used by the pipeline and
// by reconciliation
type SignatureProvider interface {
	Upload(ctx context.Context, req *UploadRequest) (map[string]any, error)
	GetDocument(ctx context.Context, code string) (*ProviderDocument, error)
	ListDocuments(ctx context.Context) ([]ProviderDocument, error)
}

// SignProfile is one signer in an upload request
type SignProfile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	// Label asks the provider to place the signature field at the anchor text
	Label bool `json:"label"`
}

// UploadRequest is the document upload payload
type UploadRequest struct {
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	Subject      string        `json:"subject"`
	Message      string        `json:"message"`
	Notification bool          `json:"notification"`
	Remember     int           `json:"remember"`
	SignProfile  []SignProfile `json:"signProfile"`
	File         string        `json:"file"`
}

// ProviderSigner is a signer as reported by the provider
type ProviderSigner struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
	Status string `json:"status,omitempty"`
}

// ProviderDocument is a provider document with its signers
type ProviderDocument struct {
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Status      string           `json:"status"`
	CreatedAt   string           `json:"created_at,omitempty"`
	DocumentURL string           `json:"document_url,omitempty"`
	Signers     []ProviderSigner `json:"signers"`
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, truncate(e.body, 512))
}

// AucoClient talks to the Auco document API. Reads use the public key and
// writes the private key, both sent as the raw Authorization header.
type AucoClient struct {
	config     *config.AucoConfig
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

func NewAucoClient(cfg *config.AucoConfig) *AucoClient {
	return NewAucoClientWithBreaker(cfg, DefaultBreakerSettings("auco"))
}

func NewAucoClientWithBreaker(cfg *config.AucoConfig, settings BreakerSettings) *AucoClient {
	return &AucoClient{
		config:  cfg,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		breaker: newBreaker(settings),
	}
}

// maskKey shows only the ends of a key for logs and error details
func maskKey(k string) string {
	if len(k) < 8 {
		return "(len=" + strconv.Itoa(len(k)) + ")"
	}
	return fmt.Sprintf("%s...%s(len=%d)", k[:4], k[len(k)-4:], len(k))
}

func (c *AucoClient) keyFor(method string) (string, error) {
	if method == http.MethodGet {
		key := strings.TrimSpace(c.config.PublicKey)
		if key == "" {
			return "", &PipelineError{Kind: KindConfigMissing, Message: "Provider public key is not configured", Details: "AUCO_PUK"}
		}
		if !strings.HasPrefix(key, publicKeyPrefix) {
			return "", &PipelineError{Kind: KindConfigMissing, Message: "Invalid provider public key", Details: maskKey(key)}
		}
		return key, nil
	}

	key := strings.TrimSpace(c.config.PrivateKey)
	if key == "" {
		return "", &PipelineError{Kind: KindConfigMissing, Message: "Provider private key is not configured", Details: "AUCO_PRK"}
	}
	if !strings.HasPrefix(key, privateKeyPrefix) {
		return "", &PipelineError{Kind: KindConfigMissing, Message: "Invalid provider private key", Details: maskKey(key)}
	}
	return key, nil
}

func (c *AucoClient) do(ctx context.Context, operation, method, path string, body any) ([]byte, error) {
	key, err := c.keyFor(method)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if method != http.MethodGet {
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	logger.Debug(ctx, "provider request", "method", method, "path", path, "auth", maskKey(key))

	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.send(ctx, method, path, key, payload)
	})
	if err == nil {
		metrics.ProviderRequests.WithLabelValues(operation, "success").Inc()
		return data, nil
	}

	if isBreakerRejection(err) {
		metrics.ProviderRequests.WithLabelValues(operation, "rejected").Inc()
		return nil, &PipelineError{Kind: KindProviderUnavailable, Message: "Signature provider unavailable", Err: err}
	}
	metrics.ProviderRequests.WithLabelValues(operation, "error").Inc()

	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusUnauthorized {
		return nil, &PipelineError{
			Kind:    KindProviderAuthFailure,
			Message: "Signature provider rejected the credentials",
			Details: fmt.Sprintf("base=%s key=%s; keys must match the environment of the base URL, reads use puk_ and writes prk_; %s",
				c.baseURL, maskKey(key), truncate(se.body, 256)),
			Err: err,
		}
	}
	return nil, fmt.Errorf("provider %s %s: %w", method, path, err)
}

func (c *AucoClient) send(ctx context.Context, method, path, key string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", key)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}
	return body, nil
}

// Ping checks that the public key and base URL belong to the same
// environment
func (c *AucoClient) Ping(ctx context.Context) error {
	if _, err := c.do(ctx, "ping", http.MethodGet, "/document", nil); err != nil {
		return fmt.Errorf("provider environment check failed: %w", err)
	}
	return nil
}

// Upload submits a document for signature and returns the decoded response.
// With diagnose enabled a Ping runs first.
func (c *AucoClient) Upload(ctx context.Context, req *UploadRequest) (map[string]any, error) {
	if c.config.Diagnose {
		if err := c.Ping(ctx); err != nil {
			return nil, err
		}
	}

	body, err := c.do(ctx, "upload", http.MethodPost, "/document/upload", req)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &PipelineError{
			Kind:    KindProviderResponseMalformed,
			Message: "Unexpected response from the signature provider",
			Data:    string(body),
			Err:     err,
		}
	}
	return result, nil
}

// GetDocument fetches one document with its signers
func (c *AucoClient) GetDocument(ctx context.Context, code string) (*ProviderDocument, error) {
	body, err := c.do(ctx, "get_document", http.MethodGet, "/document/get?code="+url.QueryEscape(code), nil)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse document %s: %w", code, err)
	}
	doc := ParseProviderDocument(raw, code)
	return &doc, nil
}

// ListDocuments returns every document of the account
func (c *AucoClient) ListDocuments(ctx context.Context) ([]ProviderDocument, error) {
	body, err := c.do(ctx, "list_documents", http.MethodGet, "/document/list", nil)
	if err != nil {
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse document list: %w", err)
	}

	items, ok := raw.([]any)
	if !ok {
		if m, isMap := raw.(map[string]any); isMap {
			items, ok = m["data"].([]any)
		}
	}
	if !ok {
		return nil, &PipelineError{
			Kind:    KindProviderResponseMalformed,
			Message: "Unexpected document list format",
			Data:    truncate(string(body), 2048),
		}
	}

	docs := make([]ProviderDocument, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		doc := ParseProviderDocument(m, "")
		if doc.Code == "" {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ExtractDocumentCode finds the document code in an upload response. The
// provider has used several field names over time.
func ExtractDocumentCode(resp map[string]any) (string, bool) {
	for _, key := range []string{"code", "document", "documentCode"} {
		if s := stringField(resp, key); s != "" {
			return s, true
		}
	}
	if data, ok := resp["data"].(map[string]any); ok {
		for _, key := range []string{"code", "document"} {
			if s := stringField(data, key); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// ParseProviderDocument reads a document from a provider payload. Fields may
// sit at the top level or under "data".
func ParseProviderDocument(raw map[string]any, fallbackCode string) ProviderDocument {
	data, _ := raw["data"].(map[string]any)
	field := func(key string) string {
		if s := stringField(data, key); s != "" {
			return s
		}
		return stringField(raw, key)
	}

	doc := ProviderDocument{
		Code:        field("code"),
		Name:        field("name"),
		Status:      field("status"),
		CreatedAt:   field("created_at"),
		DocumentURL: field("document_url"),
	}
	if doc.Code == "" {
		doc.Code = field("document")
	}
	if doc.Code == "" {
		doc.Code = fallbackCode
	}
	if doc.Name == "" && doc.Code != "" {
		doc.Name = "Document " + doc.Code
	}

	profiles, ok := data["signProfile"].([]any)
	if !ok {
		profiles, _ = raw["signProfile"].([]any)
	}
	for _, p := range profiles {
		m, ok := p.(map[string]any)
		if !ok {
			continue
		}
		signer := ProviderSigner{
			Name:   stringField(m, "name"),
			Email:  stringField(m, "email"),
			Phone:  stringField(m, "phone"),
			Status: stringField(m, "status"),
		}
		for _, key := range []string{"id", "_id", "code"} {
			if signer.ID = stringField(m, key); signer.ID != "" {
				break
			}
		}
		doc.Signers = append(doc.Signers, signer)
	}
	return doc
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
