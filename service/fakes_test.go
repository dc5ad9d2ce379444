package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/altovisual/artist-management-sub002/model"
)

// makePDF returns a structurally valid PDF of exactly size bytes
func makePDF(size int) []byte {
	head := []byte("%PDF-1.4\n")
	tail := []byte("\n%%EOF\n")
	if size < len(head)+len(tail) {
		size = len(head) + len(tail)
	}
	pad := bytes.Repeat([]byte("0"), size-len(head)-len(tail))
	return append(append(append([]byte{}, head...), pad...), tail...)
}

type fakeProvider struct {
	mu          sync.Mutex
	uploadResp  map[string]any
	uploadErr   error
	uploads     []*UploadRequest
	documents   map[string]*ProviderDocument
	getErr      error
	getCalls    int
	listErr     error
	listed      []ProviderDocument
	listedCalls int
}

func (f *fakeProvider) Upload(_ context.Context, req *UploadRequest) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, req)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return f.uploadResp, nil
}

func (f *fakeProvider) GetDocument(_ context.Context, code string) (*ProviderDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc, ok := f.documents[code]
	if !ok {
		return nil, errors.New("document not found")
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeProvider) ListDocuments(context.Context) ([]ProviderDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listedCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]ProviderDocument, len(f.listed))
	copy(out, f.listed)
	return out, nil
}

// fakeLedger is an in-memory signature ledger keyed by document code and email
type fakeLedger struct {
	mu        sync.Mutex
	entries   []model.SignatureEntry
	recordErr error
	nextID    int64
}

func (l *fakeLedger) Record(_ context.Context, entry *model.SignatureEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recordErr != nil {
		return l.recordErr
	}
	l.nextID++
	entry.ID = l.nextID
	l.entries = append(l.entries, *entry)
	return nil
}

func (l *fakeLedger) ListSignatures(_ context.Context, f SignatureFilter) ([]model.SignatureEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.SignatureEntry
	for _, e := range l.entries {
		if f.ContractID != "" && (e.ContractID == nil || *e.ContractID != f.ContractID) {
			continue
		}
		if f.DocumentCode != "" && e.DocumentCode != f.DocumentCode {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *fakeLedger) InsertSignature(_ context.Context, entry *model.SignatureEntry) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.DocumentCode == entry.DocumentCode && e.SignerEmail == entry.SignerEmail {
			return false, nil
		}
	}
	l.nextID++
	entry.ID = l.nextID
	l.entries = append(l.entries, *entry)
	return true, nil
}

func (l *fakeLedger) UpdateSignatureStatus(_ context.Context, code, email, status string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		if l.entries[i].DocumentCode == code && l.entries[i].SignerEmail == email && l.entries[i].Status != status {
			l.entries[i].Status = status
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeLedger) UpdateDocumentStatus(_ context.Context, code, status string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for i := range l.entries {
		if l.entries[i].DocumentCode == code && l.entries[i].Status != status {
			l.entries[i].Status = status
			n++
		}
	}
	return n, nil
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// fakeSession serves one contract graph and records ledger rows and dispatches
type fakeSession struct {
	*fakeLedger
	graphs     map[string]*model.ContractGraph
	dispatches map[string]*model.DispatchRecord
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		fakeLedger: &fakeLedger{},
		graphs:     make(map[string]*model.ContractGraph),
		dispatches: make(map[string]*model.DispatchRecord),
	}
}

func (s *fakeSession) FetchContractGraph(_ context.Context, id string) (*model.ContractGraph, error) {
	g, ok := s.graphs[id]
	if !ok {
		return nil, &PipelineError{Kind: KindContractNotFound, Message: "Contract not found", Details: id}
	}
	return g, nil
}

func (s *fakeSession) GetDispatch(_ context.Context, key string) (*model.DispatchRecord, error) {
	return s.dispatches[key], nil
}

func (s *fakeSession) SaveDispatch(_ context.Context, rec *model.DispatchRecord) error {
	if _, ok := s.dispatches[rec.IdempotencyKey]; !ok {
		s.dispatches[rec.IdempotencyKey] = rec
	}
	return nil
}

// fakeSessionStore counts acquire/release pairs
type fakeSessionStore struct {
	session  *fakeSession
	acquired int
	released int
}

func (s *fakeSessionStore) WithSession(_ context.Context, fn func(ContractSession) error) error {
	s.acquired++
	defer func() { s.released++ }()
	return fn(s.session)
}

type fakeRenderer struct {
	payload  PDFPayload
	err      error
	calls    int
	lastHTML string
}

func (r *fakeRenderer) Render(_ context.Context, html string) (PDFPayload, error) {
	r.calls++
	r.lastHTML = html
	return r.payload, r.err
}

// fakeLock runs onAcquire once, before granting the first lock, to simulate
// a competing request finishing while this one waits
type fakeLock struct {
	held      map[string]bool
	released  int
	onAcquire func()
}

func (l *fakeLock) Acquire(_ context.Context, key string) (func(context.Context), error) {
	if l.held[key] {
		return nil, &PipelineError{Kind: KindDispatchInFlight, Message: "in flight"}
	}
	if hook := l.onAcquire; hook != nil {
		l.onAcquire = nil
		hook()
	}
	return func(context.Context) { l.released++ }, nil
}

type fakeArchive struct {
	objects map[string][]byte
	err     error
}

func (a *fakeArchive) Archive(_ context.Context, contractID, code string, pdf []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	if a.objects == nil {
		a.objects = make(map[string][]byte)
	}
	name := ObjectName(contractID, code)
	a.objects[name] = pdf
	return "https://archive.test/" + strings.TrimPrefix(name, "/"), nil
}
