package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

// defaultAuditLimit caps List when the filter sets no limit.
const defaultAuditLimit = 100

// AuditStore implements domain.AuditStore. Ledger mutations and archive runs
// append here; administrators read it back filtered by event or user.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Log appends one entry. detail is stored as JSONB.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: audit %s: marshal detail: %w", event, err)
	}
	if _, err := s.pool.Exec(ctx, `INSERT INTO audit_log (event, detail) VALUES ($1, $2)`, event, raw); err != nil {
		return fmt.Errorf("postgres: audit %s: %w", event, err)
	}
	return nil
}

// List returns entries matching filter, newest first.
func (s *AuditStore) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	query, args := auditQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit: %w", err)
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var (
			e   domain.AuditEntry
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.Event, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan audit: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Detail); err != nil {
				return nil, fmt.Errorf("postgres: audit %d detail: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list audit rows: %w", err)
	}
	return entries, nil
}

// auditQuery builds the filtered SELECT with positional arguments.
func auditQuery(f domain.AuditFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.EventPrefix != "" {
		where = append(where, "event LIKE "+arg(escapeLike(f.EventPrefix)+"%"))
	}
	if f.UserID != "" {
		where = append(where, "detail->>'user_id' = "+arg(f.UserID))
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= "+arg(f.Since))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	var b strings.Builder
	b.WriteString("SELECT id, event, detail, created_at FROM audit_log")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC LIMIT ")
	b.WriteString(arg(limit))
	return b.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ domain.AuditStore = (*AuditStore)(nil)
