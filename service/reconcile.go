package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/altovisual/artist-management-sub002/model"
	"github.com/altovisual/artist-management-sub002/pkg/logger"
	"github.com/altovisual/artist-management-sub002/pkg/metrics"
)

// LedgerStore is the read/merge side of the signature ledger
type LedgerStore interface {
	ListSignatures(ctx context.Context, f SignatureFilter) ([]model.SignatureEntry, error)
	InsertSignature(ctx context.Context, entry *model.SignatureEntry) (bool, error)
	UpdateSignatureStatus(ctx context.Context, documentCode, signerEmail, status string) (bool, error)
	UpdateDocumentStatus(ctx context.Context, documentCode, status string) (int64, error)
}

// ReconcileOptions limits a run to specific provider documents. With no
// codes every document the provider lists is reconciled.
type ReconcileOptions struct {
	DocumentCodes []string
}

// ReconcileReport counts what a run changed
type ReconcileReport struct {
	Documents int      `json:"documents"`
	Inserted  int      `json:"inserted"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// Reconciler merges provider document state into the local ledger. It
// inserts and updates, never deletes.
type Reconciler struct {
	ledger   LedgerStore
	provider SignatureProvider
}

func NewReconciler(ledger LedgerStore, provider SignatureProvider) *Reconciler {
	return &Reconciler{ledger: ledger, provider: provider}
}

// LocalEntries lists ledger rows
func (r *Reconciler) LocalEntries(ctx context.Context, f SignatureFilter) ([]model.SignatureEntry, error) {
	return r.ledger.ListSignatures(ctx, f)
}

// ProviderDocuments lists the provider's live documents
func (r *Reconciler) ProviderDocuments(ctx context.Context) ([]ProviderDocument, error) {
	return r.provider.ListDocuments(ctx)
}

var contractRefPattern = regexp.MustCompile(`#([A-Za-z0-9-]+)`)

// ContractIDFromName extracts a "#<id>" contract reference from a provider
// document name
func ContractIDFromName(name string) *string {
	m := contractRefPattern.FindStringSubmatch(name)
	if m == nil {
		return nil
	}
	id := m[1]
	return &id
}

// Reconcile runs one merge pass. Running it twice against an unchanged
// provider adds nothing on the second run.
func (r *Reconciler) Reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	docs, err := r.collect(ctx, opts, report)
	if err != nil {
		return nil, err
	}

	entries, err := r.ledger.ListSignatures(ctx, SignatureFilter{})
	if err != nil {
		return nil, err
	}
	local := make(map[string]map[string]model.SignatureEntry)
	for _, e := range entries {
		if local[e.DocumentCode] == nil {
			local[e.DocumentCode] = make(map[string]model.SignatureEntry)
		}
		local[e.DocumentCode][strings.ToLower(strings.TrimSpace(e.SignerEmail))] = e
	}

	for _, doc := range docs {
		report.Documents++
		if err := r.mergeDocument(ctx, doc, local[doc.Code], report); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", doc.Code, err))
		}
	}

	metrics.ReconcileChanges.WithLabelValues("inserted").Add(float64(report.Inserted))
	metrics.ReconcileChanges.WithLabelValues("updated").Add(float64(report.Updated))
	logger.Info(ctx, "reconciliation finished",
		"documents", report.Documents,
		"inserted", report.Inserted,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"skipped", report.Skipped,
		"errors", len(report.Errors),
	)
	return report, nil
}

// collect loads the documents to reconcile. Listed documents without signers
// are completed with a detail fetch.
func (r *Reconciler) collect(ctx context.Context, opts ReconcileOptions, report *ReconcileReport) ([]ProviderDocument, error) {
	if len(opts.DocumentCodes) > 0 {
		docs := make([]ProviderDocument, 0, len(opts.DocumentCodes))
		for _, code := range opts.DocumentCodes {
			doc, err := r.provider.GetDocument(ctx, code)
			if err != nil {
				report.Skipped++
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", code, err))
				continue
			}
			docs = append(docs, *doc)
		}
		return docs, nil
	}

	docs, err := r.provider.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if len(docs[i].Signers) > 0 {
			continue
		}
		detail, err := r.provider.GetDocument(ctx, docs[i].Code)
		if err != nil {
			logger.Warn(ctx, "failed to fetch document details", "document_code", docs[i].Code, "error", err)
			continue
		}
		docs[i].Signers = detail.Signers
		if docs[i].Status == "" {
			docs[i].Status = detail.Status
		}
	}
	return docs, nil
}

func (r *Reconciler) mergeDocument(ctx context.Context, doc ProviderDocument, existing map[string]model.SignatureEntry, report *ReconcileReport) error {
	contractID := siblingContractID(existing)
	if contractID == nil {
		contractID = ContractIDFromName(doc.Name)
	}

	if len(doc.Signers) == 0 {
		if len(existing) == 0 || doc.Status == "" {
			report.Skipped++
			return nil
		}
		n, err := r.ledger.UpdateDocumentStatus(ctx, doc.Code, model.MapProviderStatus(doc.Status))
		if err != nil {
			return err
		}
		if n > 0 {
			report.Updated += int(n)
		} else {
			report.Unchanged++
		}
		return nil
	}

	for _, s := range doc.Signers {
		email := strings.ToLower(strings.TrimSpace(s.Email))
		if email == "" {
			report.Skipped++
			continue
		}

		reported := s.Status
		if reported == "" {
			reported = doc.Status
		}

		entry, known := existing[email]
		if known {
			if reported == "" || model.MapProviderStatus(reported) == entry.Status {
				report.Unchanged++
				continue
			}
			changed, err := r.ledger.UpdateSignatureStatus(ctx, doc.Code, email, model.MapProviderStatus(reported))
			if err != nil {
				return err
			}
			if changed {
				report.Updated++
			} else {
				report.Unchanged++
			}
			continue
		}

		inserted, err := r.ledger.InsertSignature(ctx, &model.SignatureEntry{
			ContractID:   contractID,
			SignerEmail:  email,
			SignerName:   s.Name,
			DocumentCode: doc.Code,
			DocumentName: doc.Name,
			Status:       model.MapProviderStatus(reported),
		})
		if err != nil {
			return err
		}
		if inserted {
			report.Inserted++
		} else {
			report.Unchanged++
		}
	}
	return nil
}

func siblingContractID(entries map[string]model.SignatureEntry) *string {
	for _, e := range entries {
		if e.ContractID != nil && *e.ContractID != "" {
			id := *e.ContractID
			return &id
		}
	}
	return nil
}
