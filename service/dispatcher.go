package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/altovisual/artist-management-sub002/config"
	"github.com/altovisual/artist-management-sub002/model"
	"github.com/altovisual/artist-management-sub002/pkg/logger"
	"github.com/altovisual/artist-management-sub002/pkg/metrics"
)

// UntitledWork names documents for contracts whose work has no name
const UntitledWork = "Untitled"

// LedgerWriter persists signature ledger rows
type LedgerWriter interface {
	Record(ctx context.Context, entry *model.SignatureEntry) error
}

// DispatchRequest is everything needed to send a validated PDF for signature
type DispatchRequest struct {
	ContractID   string
	WorkName     string
	Participants []model.Participant
	PDFBase64    string
}

// DispatchResult is returned to the caller after a successful upload
type DispatchResult struct {
	SessionCode  string           `json:"session_code"`
	DocumentCode string           `json:"document_code"`
	SignerIDs    []string         `json:"signer_ids"`
	Signers      []ProviderSigner `json:"signers"`
	ArchiveURL   string           `json:"archive_url,omitempty"`
	Warnings     []NonFatal       `json:"-"`
	Replayed     bool             `json:"replayed,omitempty"`
}

// Dispatcher validates signers, uploads the document and records the ledger
type Dispatcher struct {
	provider SignatureProvider
	config   *config.AucoConfig
}

func NewDispatcher(provider SignatureProvider, cfg *config.AucoConfig) *Dispatcher {
	return &Dispatcher{provider: provider, config: cfg}
}

// ValidateSigners normalizes phones and rejects duplicate or missing emails.
// It runs before any provider call.
func ValidateSigners(participants []model.Participant) ([]model.Participant, error) {
	signers := make([]model.Participant, len(participants))
	for i, p := range participants {
		p.Phone = NormalizePhone(p.Phone)
		p.Email = strings.TrimSpace(p.Email)
		signers[i] = p
	}

	seen := make(map[string]int, len(signers))
	for _, p := range signers {
		if email := p.NormalizedEmail(); email != "" {
			seen[email]++
		}
	}
	var duplicates []string
	for email, n := range seen {
		if n > 1 {
			duplicates = append(duplicates, email)
		}
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		return nil, &PipelineError{
			Kind:    KindDuplicateSigner,
			Message: "Duplicate signer emails",
			Details: strings.Join(duplicates, ", "),
			Data:    duplicates,
		}
	}

	missing := 0
	for _, p := range signers {
		if p.Email == "" {
			missing++
		}
	}
	if missing > 0 || len(signers) == 0 {
		return nil, &PipelineError{
			Kind:    KindMissingSignerEmail,
			Message: "Signers without email",
			Details: fmt.Sprintf("%d of %d participants have no email", missing, len(signers)),
			Data:    missing,
		}
	}
	return signers, nil
}

func workTitle(workName string) string {
	if workName = strings.TrimSpace(workName); workName == "" {
		return UntitledWork
	}
	return workName
}

// DocumentName is the provider document name for a work
func DocumentName(workName string) string {
	return "Contract: " + workTitle(workName)
}

// BuildUploadRequest builds the provider payload for validated signers
func (d *Dispatcher) BuildUploadRequest(req *DispatchRequest, signers []model.Participant) *UploadRequest {
	profiles := make([]SignProfile, len(signers))
	for i, p := range signers {
		profiles[i] = SignProfile{
			Name:  p.Name,
			Email: p.Email,
			Phone: p.Phone,
			Label: true,
		}
	}

	notify := true
	if d.config.Notify != nil {
		notify = *d.config.Notify
	}

	return &UploadRequest{
		Email:        d.config.OwnerEmail,
		Name:         DocumentName(req.WorkName),
		Subject:      fmt.Sprintf("%s: %s", d.config.Subject, workTitle(req.WorkName)),
		Message:      d.config.Message,
		Notification: notify,
		Remember:     d.config.RemindEvery,
		SignProfile:  profiles,
		File:         req.PDFBase64,
	}
}

// Dispatch uploads the document and fans out one ledger row per signer.
// Ledger writes and the detail fetch are best effort; their failures are
// returned as warnings.
func (d *Dispatcher) Dispatch(ctx context.Context, ledger LedgerWriter, req *DispatchRequest) (*DispatchResult, error) {
	signers, err := ValidateSigners(req.Participants)
	if err != nil {
		return nil, err
	}

	upload := d.BuildUploadRequest(req, signers)
	resp, err := d.provider.Upload(ctx, upload)
	if err != nil {
		return nil, err
	}

	code, ok := ExtractDocumentCode(resp)
	if !ok {
		return nil, &PipelineError{
			Kind:    KindProviderResponseMalformed,
			Message: "Unexpected response from the signature provider",
			Details: "no document code in response",
			Data:    resp,
		}
	}
	logger.Info(ctx, "document uploaded for signature", "document_code", code, "signers", len(signers))

	result := &DispatchResult{
		SessionCode:  code,
		DocumentCode: code,
		SignerIDs:    []string{},
	}

	var contractID *string
	if req.ContractID != "" {
		id := req.ContractID
		contractID = &id
	}
	for _, p := range signers {
		entry := &model.SignatureEntry{
			ContractID:   contractID,
			SignerEmail:  p.NormalizedEmail(),
			SignerName:   p.Name,
			DocumentCode: code,
			DocumentName: upload.Name,
			Status:       model.SignatureSent,
		}
		if err := ledger.Record(ctx, entry); err != nil {
			metrics.LedgerWrites.WithLabelValues("error").Inc()
			logger.Warn(ctx, "failed to record signature", "signer_email", entry.SignerEmail, "error", err)
			result.Warnings = append(result.Warnings, NonFatal{Step: "ledger " + entry.SignerEmail, Err: err})
			continue
		}
		metrics.LedgerWrites.WithLabelValues("success").Inc()
	}

	doc, err := d.provider.GetDocument(ctx, code)
	if err != nil {
		logger.Warn(ctx, "failed to fetch document details", "document_code", code, "error", err)
		result.Warnings = append(result.Warnings, NonFatal{Step: "document details", Err: err})
	} else {
		result.Signers = doc.Signers
		for _, s := range doc.Signers {
			if s.ID != "" {
				result.SignerIDs = append(result.SignerIDs, s.ID)
			}
		}
	}

	if len(result.SignerIDs) > 0 {
		result.SessionCode = code + result.SignerIDs[0]
	}
	if result.Signers == nil {
		result.Signers = make([]ProviderSigner, len(signers))
		for i, p := range signers {
			result.Signers[i] = ProviderSigner{Name: p.Name, Email: p.Email, Phone: p.Phone}
		}
	}
	return result, nil
}
