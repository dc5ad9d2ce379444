package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/altovisual/artist-management-sub002/model"
	"github.com/altovisual/artist-management-sub002/service"
)

// SignaturePipeline is the part of service.Pipeline the handlers use
type SignaturePipeline interface {
	StartSignature(ctx context.Context, contractID string) (*service.DispatchResult, error)
	Preview(ctx context.Context, contractID string) (string, error)
}

// LedgerReconciler is the part of service.Reconciler the handlers use
type LedgerReconciler interface {
	LocalEntries(ctx context.Context, f service.SignatureFilter) ([]model.SignatureEntry, error)
	ProviderDocuments(ctx context.Context) ([]service.ProviderDocument, error)
	Reconcile(ctx context.Context, opts service.ReconcileOptions) (*service.ReconcileReport, error)
}

type SignatureHandler struct {
	pipeline   SignaturePipeline
	reconciler LedgerReconciler
}

func NewSignatureHandler(pipeline SignaturePipeline, reconciler LedgerReconciler) *SignatureHandler {
	return &SignatureHandler{
		pipeline:   pipeline,
		reconciler: reconciler,
	}
}

// SignatureResponse is a dispatch result with its best-effort warnings
type SignatureResponse struct {
	*service.DispatchResult
	Warnings []string `json:"warnings,omitempty"`
}

// StartRequest is the body of the legacy start endpoint
type StartRequest struct {
	ContractID string `json:"contractId" binding:"required"`
}

// ReconcileRequest optionally limits a reconciliation run
type ReconcileRequest struct {
	DocumentCodes []string `json:"document_codes"`
}

// Start sends the contract in the path for signature
func (h *SignatureHandler) Start(c *gin.Context) {
	h.start(c, c.Param("id"))
}

// StartLegacy accepts the contract id in the body
func (h *SignatureHandler) StartLegacy(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", "contractId is required")
		return
	}
	h.start(c, req.ContractID)
}

func (h *SignatureHandler) start(c *gin.Context, contractID string) {
	result, err := h.pipeline.StartSignature(c.Request.Context(), contractID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SignatureResponse{
		DispatchResult: result,
		Warnings:       service.Warnings(result.Warnings),
	})
}

// Preview returns the composed contract HTML
func (h *SignatureHandler) Preview(c *gin.Context) {
	html, err := h.pipeline.Preview(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// List returns ledger entries, optionally filtered by contract or document
func (h *SignatureHandler) List(c *gin.Context) {
	filter := service.SignatureFilter{
		ContractID:   strings.TrimSpace(c.Query("contract_id")),
		DocumentCode: strings.TrimSpace(c.Query("document_code")),
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			badRequest(c, "Invalid limit", v)
			return
		}
		filter.Limit = limit
	}

	entries, err := h.reconciler.LocalEntries(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	if entries == nil {
		entries = []model.SignatureEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"signatures": entries, "count": len(entries)})
}

// ProviderDocuments lists the documents the provider holds
func (h *SignatureHandler) ProviderDocuments(c *gin.Context) {
	docs, err := h.reconciler.ProviderDocuments(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if docs == nil {
		docs = []service.ProviderDocument{}
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

// Reconcile merges provider state into the ledger
func (h *SignatureHandler) Reconcile(c *gin.Context) {
	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request", err.Error())
		return
	}

	report, err := h.reconciler.Reconcile(c.Request.Context(), service.ReconcileOptions{DocumentCodes: req.DocumentCodes})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
