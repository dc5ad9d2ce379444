package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies pipeline failures. Each kind maps to one HTTP status.
type Kind string

const (
	KindConfigMissing             Kind = "config_missing"
	KindContractNotFound          Kind = "contract_not_found"
	KindTemplateMissing           Kind = "template_missing"
	KindTemplateMalformed         Kind = "template_malformed"
	KindInvalidPdf                Kind = "invalid_pdf"
	KindDuplicateSigner           Kind = "duplicate_signer"
	KindMissingSignerEmail        Kind = "missing_signer_email"
	KindProviderResponseMalformed Kind = "provider_response_malformed"
	KindProviderAuthFailure       Kind = "provider_auth_failure"
	KindDispatchInFlight          Kind = "dispatch_in_flight"
	KindProviderUnavailable       Kind = "provider_unavailable"
	KindInternal                  Kind = "internal"
)

// Status returns the HTTP status code for the kind
func (k Kind) Status() int {
	switch k {
	case KindContractNotFound:
		return http.StatusNotFound
	case KindInvalidPdf, KindDuplicateSigner, KindMissingSignerEmail:
		return http.StatusBadRequest
	case KindProviderResponseMalformed:
		return http.StatusBadGateway
	case KindProviderAuthFailure:
		return http.StatusUnauthorized
	case KindDispatchInFlight:
		return http.StatusConflict
	case KindProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PipelineError is the typed failure returned by every pipeline stage
type PipelineError struct {
	Kind    Kind
	Message string
	Details string
	// Data carries structured context such as offending emails or a raw provider body
	Data any
	Err  error
}

func (e *PipelineError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code of the error kind
func (e *PipelineError) Status() int {
	return e.Kind.Status()
}

// AsPipelineError converts any error to a PipelineError, wrapping unknown
// errors as KindInternal.
func AsPipelineError(err error) *PipelineError {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return &PipelineError{Kind: KindInternal, Message: "Internal error", Err: err}
}

// IsKind reports whether err is a PipelineError of the given kind
func IsKind(err error, kind Kind) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Kind == kind
}

// NonFatal is a best-effort step failure. It is reported as a warning and
// never aborts the pipeline.
type NonFatal struct {
	Step string
	Err  error
}

func (n NonFatal) Error() string {
	return fmt.Sprintf("%s: %v", n.Step, n.Err)
}

func (n NonFatal) Unwrap() error {
	return n.Err
}

// Warnings renders non-fatal failures for API responses
func Warnings(list []NonFatal) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, len(list))
	for i, w := range list {
		out[i] = w.Error()
	}
	return out
}
