package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/altovisual/artist-management-sub002/config"
	"github.com/altovisual/artist-management-sub002/pkg/metrics"
)

// MinPDFSize is the smallest byte count accepted as a real document
const MinPDFSize = 1024

var (
	pdfHeader  = []byte("%PDF-")
	pdfTrailer = []byte("%%EOF")
)

// pdfTrailerWindow is how many trailing bytes are searched for %%EOF
const pdfTrailerWindow = 32

// PDFPayload is what a renderer returns: RawPDF or Base64PDF
type PDFPayload interface {
	isPDFPayload()
}

// RawPDF is binary PDF content
type RawPDF []byte

// Base64PDF is base64 PDF content, optionally with a data URL header
type Base64PDF string

func (RawPDF) isPDFPayload()    {}
func (Base64PDF) isPDFPayload() {}

// PDFRenderer converts HTML into a PDF document
type PDFRenderer interface {
	Render(ctx context.Context, html string) (PDFPayload, error)
}

// PDFShiftRenderer calls an HTML-to-PDF conversion API
type PDFShiftRenderer struct {
	config     *config.PDFConfig
	httpClient *http.Client
}

// PDFShiftRequest is the conversion request body
type PDFShiftRequest struct {
	Source          string `json:"source"`
	Format          string `json:"format"`
	Margin          string `json:"margin"`
	PrintBackground bool   `json:"print_background"`
}

func NewPDFShiftRenderer(cfg *config.PDFConfig) *PDFShiftRenderer {
	return &PDFShiftRenderer{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Render posts html to the conversion API. The payload variant follows the
// configured response encoding.
func (r *PDFShiftRenderer) Render(ctx context.Context, html string) (PDFPayload, error) {
	if r.config.APIKey == "" {
		return nil, &PipelineError{Kind: KindConfigMissing, Message: "PDF renderer API key is not configured"}
	}

	jsonData, err := json.Marshal(PDFShiftRequest{
		Source:          html,
		Format:          r.config.Format,
		Margin:          r.config.Margin,
		PrintBackground: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.APIURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth("api", r.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues("pdf_render", "error").Inc()
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues("pdf_render", "error").Inc()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ProviderRequests.WithLabelValues("pdf_render", "error").Inc()
		return nil, fmt.Errorf("PDF API error: status %d, body: %s", resp.StatusCode, truncate(string(body), 512))
	}
	metrics.ProviderRequests.WithLabelValues("pdf_render", "success").Inc()

	if r.config.ResponseEncoding == "base64" {
		return Base64PDF(body), nil
	}
	return RawPDF(body), nil
}

// DecodePDF returns the binary content of a payload
func DecodePDF(p PDFPayload) ([]byte, error) {
	switch v := p.(type) {
	case RawPDF:
		return v, nil
	case Base64PDF:
		s := strings.TrimSpace(string(v))
		if strings.HasPrefix(s, "data:") {
			if i := strings.Index(s, ","); i >= 0 {
				s = s[i+1:]
			}
		}
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, &PipelineError{Kind: KindInvalidPdf, Message: "Invalid PDF", Details: "base64 decoding failed", Err: err}
		}
		return data, nil
	default:
		return nil, &PipelineError{Kind: KindInvalidPdf, Message: "Invalid PDF", Details: fmt.Sprintf("unsupported payload %T", p)}
	}
}

// ValidatePDF checks the header, the trailer and the minimum size
func ValidatePDF(data []byte) error {
	if len(data) < len(pdfHeader) || !bytes.Equal(data[:len(pdfHeader)], pdfHeader) {
		return &PipelineError{Kind: KindInvalidPdf, Message: "Invalid PDF", Details: "missing %PDF- header"}
	}

	tail := data
	if len(tail) > pdfTrailerWindow {
		tail = tail[len(tail)-pdfTrailerWindow:]
	}
	if !bytes.Contains(tail, pdfTrailer) {
		return &PipelineError{Kind: KindInvalidPdf, Message: "Invalid PDF", Details: "missing %%EOF trailer"}
	}

	if len(data) < MinPDFSize {
		return &PipelineError{
			Kind:    KindInvalidPdf,
			Message: "Invalid PDF",
			Details: fmt.Sprintf("document is %d bytes, minimum is %d", len(data), MinPDFSize),
		}
	}
	return nil
}

// EncodePDFBase64 validates the payload and returns it as plain base64
// together with the decoded bytes
func EncodePDFBase64(p PDFPayload) (string, []byte, error) {
	data, err := DecodePDF(p)
	if err != nil {
		return "", nil, err
	}
	if err := ValidatePDF(data); err != nil {
		return "", nil, err
	}
	return base64.StdEncoding.EncodeToString(data), data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
