package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/altovisual/artist-management-sub002/config"
	"github.com/altovisual/artist-management-sub002/model"
)

//go:embed schema.sql
var schemaSQL string

// pgUndefinedColumn is the SQLSTATE for a missing column
const pgUndefinedColumn = "42703"

// ContractSession is the database work done while one dispatch holds a
// connection
type ContractSession interface {
	FetchContractGraph(ctx context.Context, contractID string) (*model.ContractGraph, error)
	LedgerWriter
	GetDispatch(ctx context.Context, key string) (*model.DispatchRecord, error)
	SaveDispatch(ctx context.Context, rec *model.DispatchRecord) error
}

// SessionStore scopes a ContractSession to one checked-out connection
type SessionStore interface {
	WithSession(ctx context.Context, fn func(ContractSession) error) error
}

// SignatureFilter narrows ListSignatures
type SignatureFilter struct {
	ContractID   string
	DocumentCode string
	Limit        int
}

// Store is the Postgres-backed contract reader and signature ledger
type Store struct {
	pool *pgxpool.Pool
	*Session
}

// NewStore connects a pool for the configured database
func NewStore(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	if cfg.URL == "" {
		return nil, &PipelineError{Kind: KindConfigMissing, Message: "Database URL is not configured", Details: "DATABASE_URL"}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	return NewStoreFromPool(pool), nil
}

func NewStoreFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, Session: &Session{q: pool}}
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the ledger and dispatch tables when missing
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// WithSession checks out one connection for the duration of fn and releases
// it on every exit path
func (s *Store) WithSession(ctx context.Context, fn func(ContractSession) error) error {
	return s.pool.AcquireFunc(ctx, func(conn *pgxpool.Conn) error {
		return fn(&Session{q: conn})
	})
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Session runs queries on a pool or on a single acquired connection
type Session struct {
	q querier
}

const contractGraphSelect = `
SELECT
  c.id::text,
  COALESCE(c.status, ''),
  COALESCE(c.internal_reference, ''),
  COALESCE(c.signing_location, ''),
  COALESCE(c.additional_notes, ''),
  COALESCE(c.publisher, ''),
  COALESCE(c.publisher_percentage::text, ''),
  COALESCE(c.co_publishers, ''),
  COALESCE(c.publisher_admin, ''),
  c.created_at,
  COALESCE(w.id::text, ''),
  COALESCE(w.name, ''),
  COALESCE(w.alternative_title, ''),
  COALESCE(w.iswc, ''),
  COALESCE(w.type, ''),
  COALESCE(w.status, ''),
  w.release_date::timestamptz,
  COALESCE(w.isrc, ''),
  COALESCE(w.upc, ''),
  COALESCE(t.id::text, ''),
  COALESCE(to_jsonb(t) ->> 'type', ''),
  %s,
  COALESCE(
    json_agg(
      json_build_object(
        'id', p.id,
        'name', p.name,
        'email', p.email,
        'phone', p.phone,
        'role', cp.role,
        'percentage', cp.percentage,
        'ipi', to_jsonb(p) ->> 'ipi',
        'artistic_name', to_jsonb(p) ->> 'artistic_name',
        'management_entity', to_jsonb(p) ->> 'management_entity',
        'type', to_jsonb(p) ->> 'type'
      ) ORDER BY p.name, p.id
    ) FILTER (WHERE p.id IS NOT NULL),
    '[]'
  )
FROM public.contracts c
LEFT JOIN public.projects w ON c.project_id = w.id
LEFT JOIN public.templates t ON c.template_id = t.id
LEFT JOIN public.contract_participants cp ON c.id = cp.contract_id
LEFT JOIN public.participants p ON cp.participant_id = p.id
WHERE c.id = $1
GROUP BY c.id, w.id, t.id
`

var (
	contractGraphQuery       = fmt.Sprintf(contractGraphSelect, "t.template_html")
	contractGraphLegacyQuery = fmt.Sprintf(contractGraphSelect, "NULL::text")
)

// FetchContractGraph reads the contract with its work, template and
// participants in one query. Databases without templates.template_html are
// read with the legacy shape.
func (s *Session) FetchContractGraph(ctx context.Context, contractID string) (*model.ContractGraph, error) {
	graph, err := s.fetchGraph(ctx, contractGraphQuery, contractID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedColumn {
		graph, err = s.fetchGraph(ctx, contractGraphLegacyQuery, contractID)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &PipelineError{
			Kind:    KindContractNotFound,
			Message: "Contract not found",
			Details: contractID,
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contract %s: %w", contractID, err)
	}
	return graph, nil
}

func (s *Session) fetchGraph(ctx context.Context, query, contractID string) (*model.ContractGraph, error) {
	var (
		g            model.ContractGraph
		createdAt    *time.Time
		templateHTML *string
		participants []byte
	)
	err := s.q.QueryRow(ctx, query, contractID).Scan(
		&g.Contract.ID,
		&g.Contract.Status,
		&g.Contract.InternalReference,
		&g.Contract.SigningLocation,
		&g.Contract.AdditionalNotes,
		&g.Contract.Publisher,
		&g.Contract.PublisherPercentage,
		&g.Contract.CoPublishers,
		&g.Contract.PublisherAdmin,
		&createdAt,
		&g.Contract.WorkID,
		&g.Work.Name,
		&g.Work.AlternativeTitle,
		&g.Work.ISWC,
		&g.Work.Type,
		&g.Work.Status,
		&g.Work.ReleaseDate,
		&g.Work.ISRC,
		&g.Work.UPC,
		&g.Template.ID,
		&g.Template.Type,
		&templateHTML,
		&participants,
	)
	if err != nil {
		return nil, err
	}

	if createdAt != nil {
		g.Contract.CreatedAt = *createdAt
	}
	g.Contract.TemplateID = g.Template.ID
	g.Template.HTML = templateHTML

	if g.Participants, err = decodeParticipants(participants); err != nil {
		return nil, err
	}
	return &g, nil
}

type participantRow struct {
	ID               json.RawMessage  `json:"id"`
	Name             *string          `json:"name"`
	Email            *string          `json:"email"`
	Phone            json.RawMessage  `json:"phone"`
	Role             *string          `json:"role"`
	Percentage       *decimal.Decimal `json:"percentage"`
	IPI              *string          `json:"ipi"`
	ArtisticName     *string          `json:"artistic_name"`
	ManagementEntity *string          `json:"management_entity"`
	Type             *string          `json:"type"`
}

// decodeParticipants reads the aggregated participant JSON. Ids and phones
// may be stored as numbers.
func decodeParticipants(data []byte) ([]model.Participant, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var rows []participantRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode participants: %w", err)
	}

	out := make([]model.Participant, 0, len(rows))
	for _, r := range rows {
		p := model.Participant{
			ID:               rawScalar(r.ID),
			Name:             deref(r.Name),
			Email:            deref(r.Email),
			Phone:            rawScalar(r.Phone),
			Role:             deref(r.Role),
			IPI:              deref(r.IPI),
			ArtisticName:     deref(r.ArtisticName),
			ManagementEntity: deref(r.ManagementEntity),
			Type:             deref(r.Type),
		}
		if r.Percentage != nil {
			p.Percentage = *r.Percentage
		}
		out = append(out, p)
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func rawScalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// Record inserts one ledger row with status sent
func (s *Session) Record(ctx context.Context, entry *model.SignatureEntry) error {
	status := entry.Status
	if status == "" {
		status = model.SignatureSent
	}
	return s.q.QueryRow(ctx, `
INSERT INTO signatures (contract_id, signer_email, signer_name, signature_request_id, document_name, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
RETURNING id, created_at
`, entry.ContractID, entry.SignerEmail, entry.SignerName, entry.DocumentCode, entry.DocumentName, status).Scan(&entry.ID, &entry.CreatedAt)
}

const signatureColumns = `id, contract_id::text, signer_email, COALESCE(signer_name, ''), signature_request_id,
  COALESCE(document_name, ''), COALESCE(document_url, ''), status, created_at, updated_at, completed_at`

// ListSignatures returns ledger rows, newest first
func (s *Session) ListSignatures(ctx context.Context, f SignatureFilter) ([]model.SignatureEntry, error) {
	query := `SELECT ` + signatureColumns + ` FROM signatures WHERE 1=1`
	var args []any
	if f.ContractID != "" {
		args = append(args, f.ContractID)
		query += fmt.Sprintf(" AND contract_id::text = $%d", len(args))
	}
	if f.DocumentCode != "" {
		args = append(args, f.DocumentCode)
		query += fmt.Sprintf(" AND signature_request_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list signatures: %w", err)
	}
	defer rows.Close()

	var out []model.SignatureEntry
	for rows.Next() {
		var e model.SignatureEntry
		if err := rows.Scan(&e.ID, &e.ContractID, &e.SignerEmail, &e.SignerName, &e.DocumentCode,
			&e.DocumentName, &e.DocumentURL, &e.Status, &e.CreatedAt, &e.UpdatedAt, &e.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan signature: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertSignature adds a ledger row unless the signer already exists for
// the document
func (s *Session) InsertSignature(ctx context.Context, entry *model.SignatureEntry) (bool, error) {
	tag, err := s.q.Exec(ctx, `
INSERT INTO signatures (contract_id, signer_email, signer_name, signature_request_id, document_name, status, created_at, updated_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW(), CASE WHEN $6 = 'completed' THEN NOW() END)
ON CONFLICT (signature_request_id, signer_email) DO NOTHING
`, entry.ContractID, entry.SignerEmail, entry.SignerName, entry.DocumentCode, entry.DocumentName, entry.Status)
	if err != nil {
		return false, fmt.Errorf("failed to insert signature: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateSignatureStatus changes one signer's status when it differs.
// completed_at is set on the first transition to completed.
func (s *Session) UpdateSignatureStatus(ctx context.Context, documentCode, signerEmail, status string) (bool, error) {
	tag, err := s.q.Exec(ctx, `
UPDATE signatures
SET status = $3,
    updated_at = NOW(),
    completed_at = CASE WHEN $3 = 'completed' AND completed_at IS NULL THEN NOW() ELSE completed_at END
WHERE signature_request_id = $1 AND signer_email = $2 AND status IS DISTINCT FROM $3
`, documentCode, signerEmail, status)
	if err != nil {
		return false, fmt.Errorf("failed to update signature: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateDocumentStatus changes every signer row of a document
func (s *Session) UpdateDocumentStatus(ctx context.Context, documentCode, status string) (int64, error) {
	tag, err := s.q.Exec(ctx, `
UPDATE signatures
SET status = $2,
    updated_at = NOW(),
    completed_at = CASE WHEN $2 = 'completed' AND completed_at IS NULL THEN NOW() ELSE completed_at END
WHERE signature_request_id = $1 AND status IS DISTINCT FROM $2
`, documentCode, status)
	if err != nil {
		return 0, fmt.Errorf("failed to update document: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetDocumentURL stores the provider's signed-document link on every signer
// row of a document
func (s *Session) SetDocumentURL(ctx context.Context, documentCode, url string) (int64, error) {
	tag, err := s.q.Exec(ctx, `
UPDATE signatures
SET document_url = $2,
    updated_at = NOW()
WHERE signature_request_id = $1 AND document_url IS DISTINCT FROM $2
`, documentCode, url)
	if err != nil {
		return 0, fmt.Errorf("failed to set document url: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetDispatch returns the recorded dispatch for a key, or nil
func (s *Session) GetDispatch(ctx context.Context, key string) (*model.DispatchRecord, error) {
	var (
		rec       model.DispatchRecord
		signerIDs []byte
	)
	err := s.q.QueryRow(ctx, `
SELECT idempotency_key, contract_id, document_code, session_code, signer_ids, created_at
FROM signature_dispatches
WHERE idempotency_key = $1
`, key).Scan(&rec.IdempotencyKey, &rec.ContractID, &rec.DocumentCode, &rec.SessionCode, &signerIDs, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dispatch record: %w", err)
	}
	if err := json.Unmarshal(signerIDs, &rec.SignerIDs); err != nil {
		return nil, fmt.Errorf("failed to decode signer ids: %w", err)
	}
	return &rec, nil
}

// SaveDispatch stores a successful dispatch. A second save under the same
// key keeps the first record.
func (s *Session) SaveDispatch(ctx context.Context, rec *model.DispatchRecord) error {
	signerIDs, err := json.Marshal(rec.SignerIDs)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `
INSERT INTO signature_dispatches (idempotency_key, contract_id, document_code, session_code, signer_ids, created_at)
VALUES ($1, $2, $3, $4, $5::jsonb, NOW())
ON CONFLICT (idempotency_key) DO NOTHING
`, rec.IdempotencyKey, rec.ContractID, rec.DocumentCode, rec.SessionCode, string(signerIDs))
	if err != nil {
		return fmt.Errorf("failed to save dispatch record: %w", err)
	}
	return nil
}
