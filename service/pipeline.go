package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/altovisual/artist-management-sub002/config"
	"github.com/altovisual/artist-management-sub002/model"
	"github.com/altovisual/artist-management-sub002/pkg/logger"
	"github.com/altovisual/artist-management-sub002/pkg/metrics"
)

var tracer = otel.Tracer("github.com/altovisual/artist-management-sub002/service")

// Pipeline turns a contract id into a dispatched signature request:
// fetch, compose, render, validate, upload, record
type Pipeline struct {
	config     *config.Config
	store      SessionStore
	compositor *Compositor
	renderer   PDFRenderer
	dispatcher *Dispatcher
	lock       DispatchLock
	archive    PDFArchive
}

// PipelineDeps are the collaborators of a Pipeline. Lock and Archive are
// optional.
type PipelineDeps struct {
	Store      SessionStore
	Compositor *Compositor
	Renderer   PDFRenderer
	Dispatcher *Dispatcher
	Lock       DispatchLock
	Archive    PDFArchive
}

func NewPipeline(cfg *config.Config, deps PipelineDeps) *Pipeline {
	lock := deps.Lock
	if lock == nil {
		lock = NoopDispatchLock{}
	}
	return &Pipeline{
		config:     cfg,
		store:      deps.Store,
		compositor: deps.Compositor,
		renderer:   deps.Renderer,
		dispatcher: deps.Dispatcher,
		lock:       lock,
		archive:    deps.Archive,
	}
}

// step times fn and wraps it in a span
func step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "signature."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.PipelineStepDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// StartSignature runs the whole chain for one contract. Required
// configuration is checked before any I/O, and the database connection is
// held only inside one session.
func (p *Pipeline) StartSignature(ctx context.Context, contractID string) (result *DispatchResult, err error) {
	contractID = strings.TrimSpace(contractID)
	ctx = logger.WithContractID(ctx, contractID)
	ctx, span := tracer.Start(ctx, "signature.start")
	span.SetAttributes(attribute.String("contract.id", contractID))
	defer span.End()

	defer func() {
		outcome := "success"
		switch {
		case err != nil:
			outcome = string(AsPipelineError(err).Kind)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result.Replayed:
			outcome = "replayed"
		}
		metrics.DispatchTotal.WithLabelValues(outcome).Inc()
	}()

	if err := p.config.CheckRequired(); err != nil {
		return nil, &PipelineError{Kind: KindConfigMissing, Message: "Missing configuration", Details: err.Error(), Err: err}
	}
	if contractID == "" {
		return nil, &PipelineError{Kind: KindContractNotFound, Message: "Contract not found", Details: "empty contract id"}
	}

	err = p.store.WithSession(ctx, func(sess ContractSession) error {
		var graph *model.ContractGraph
		if err := step(ctx, "fetch", func(ctx context.Context) (err error) {
			graph, err = sess.FetchContractGraph(ctx, contractID)
			return err
		}); err != nil {
			return err
		}

		var html, fingerprint string
		if err := step(ctx, "compose", func(context.Context) (err error) {
			if html, err = p.compositor.Compose(graph); err != nil {
				return err
			}
			fingerprint, err = p.compositor.Fingerprint(graph)
			return err
		}); err != nil {
			return err
		}

		key := IdempotencyKey(contractID, fingerprint)
		var warnings []NonFatal
		rec, err := sess.GetDispatch(ctx, key)
		if err != nil {
			logger.Warn(ctx, "failed to read dispatch record", "error", err)
			warnings = append(warnings, NonFatal{Step: "dispatch record lookup", Err: err})
		}
		if rec != nil {
			logger.Info(ctx, "replaying previous dispatch", "document_code", rec.DocumentCode)
			result = replay(rec)
			return nil
		}

		release, err := p.lock.Acquire(ctx, key)
		if err != nil {
			return err
		}
		defer release(context.WithoutCancel(ctx))

		// a concurrent request may have finished between the lookup and the lock
		if rec, err := sess.GetDispatch(ctx, key); err != nil {
			logger.Warn(ctx, "failed to re-read dispatch record", "error", err)
		} else if rec != nil {
			logger.Info(ctx, "replaying dispatch completed while waiting for lock", "document_code", rec.DocumentCode)
			result = replay(rec)
			return nil
		}

		var payload PDFPayload
		if err := step(ctx, "render_pdf", func(ctx context.Context) (err error) {
			payload, err = p.renderer.Render(ctx, html)
			return err
		}); err != nil {
			return err
		}

		var (
			encoded string
			pdf     []byte
		)
		if err := step(ctx, "validate_pdf", func(context.Context) (err error) {
			encoded, pdf, err = EncodePDFBase64(payload)
			return err
		}); err != nil {
			return err
		}

		var res *DispatchResult
		if err := step(ctx, "dispatch", func(ctx context.Context) (err error) {
			res, err = p.dispatcher.Dispatch(ctx, sess, &DispatchRequest{
				ContractID:   contractID,
				WorkName:     graph.Work.Name,
				Participants: graph.Participants,
				PDFBase64:    encoded,
			})
			return err
		}); err != nil {
			return err
		}
		res.Warnings = append(warnings, res.Warnings...)

		if err := sess.SaveDispatch(ctx, &model.DispatchRecord{
			IdempotencyKey: key,
			ContractID:     contractID,
			DocumentCode:   res.DocumentCode,
			SessionCode:    res.SessionCode,
			SignerIDs:      res.SignerIDs,
		}); err != nil {
			logger.Warn(ctx, "failed to save dispatch record", "error", err)
			res.Warnings = append(res.Warnings, NonFatal{Step: "dispatch record", Err: err})
		}

		if p.archive != nil {
			url, err := p.archive.Archive(ctx, contractID, res.DocumentCode, pdf)
			if err != nil {
				logger.Warn(ctx, "failed to archive pdf", "error", err)
				res.Warnings = append(res.Warnings, NonFatal{Step: "archive", Err: err})
			}
			res.ArchiveURL = url
		}

		result = res
		return nil
	})
	if err != nil {
		var pe *PipelineError
		if !errors.As(err, &pe) {
			logger.Error(ctx, "signature pipeline failed", "error", err)
		}
		return nil, err
	}

	logger.Info(ctx, "signature request dispatched",
		"document_code", result.DocumentCode,
		"session_code", result.SessionCode,
		"warnings", len(result.Warnings),
	)
	return result, nil
}

func replay(rec *model.DispatchRecord) *DispatchResult {
	signerIDs := rec.SignerIDs
	if signerIDs == nil {
		signerIDs = []string{}
	}
	return &DispatchResult{
		SessionCode:  rec.SessionCode,
		DocumentCode: rec.DocumentCode,
		SignerIDs:    signerIDs,
		Signers:      []ProviderSigner{},
		Replayed:     true,
	}
}

// Preview composes the contract HTML without rendering or dispatching it
func (p *Pipeline) Preview(ctx context.Context, contractID string) (string, error) {
	ctx = logger.WithContractID(ctx, contractID)

	var html string
	err := p.store.WithSession(ctx, func(sess ContractSession) error {
		graph, err := sess.FetchContractGraph(ctx, contractID)
		if err != nil {
			return err
		}
		html, err = p.compositor.Compose(graph)
		return err
	})
	return html, err
}
