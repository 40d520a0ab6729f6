package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stocktake/internal/domain"
)

// PostgresStore persists the audit cache in PostgreSQL so last-audited
// queries survive restarts. Append-only, mirroring the remote's semantics.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the backing table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_archive (
			id           UUID PRIMARY KEY,
			item_id      TEXT NOT NULL,
			item_type    TEXT NOT NULL,
			employee_id  TEXT NOT NULL,
			audit_ts     TIMESTAMPTZ NOT NULL,
			audit_date   TEXT NOT NULL,
			audit_type   TEXT NOT NULL,
			notes        TEXT NOT NULL DEFAULT '',
			session_id   TEXT NOT NULL DEFAULT '',
			session_name TEXT NOT NULL DEFAULT '',
			session_mode TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS audit_archive_item_idx
			ON audit_archive (item_id, item_type, audit_ts DESC);
	`)
	if err != nil {
		return fmt.Errorf("migrate audit archive: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, rec domain.AuditRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_archive
			(id, item_id, item_type, employee_id, audit_ts, audit_date, audit_type,
			 notes, session_id, session_name, session_mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.New(), rec.ItemID(), rec.ItemType, rec.EmployeeID, rec.Timestamp,
		rec.AuditDate, rec.AuditType, rec.Notes, rec.SessionID, rec.SessionName,
		rec.SessionMode,
	)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (s *PostgresStore) LastAudited(ctx context.Context, itemID string, itemType domain.ItemType) (time.Time, bool, error) {
	var ts time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT audit_ts FROM audit_archive
		WHERE item_id = $1 AND item_type = $2
		ORDER BY audit_ts DESC LIMIT 1`,
		itemID, itemType,
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last audited: %w", err)
	}
	return ts, true, nil
}

func (s *PostgresStore) ListByItem(ctx context.Context, itemID string, itemType domain.ItemType) ([]domain.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, item_type, employee_id, audit_ts, audit_date, audit_type,
		       notes, session_id, session_name, session_mode
		FROM audit_archive
		WHERE item_id = $1 AND item_type = $2
		ORDER BY audit_ts DESC`,
		itemID, itemType,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var recs []domain.AuditRecord
	for rows.Next() {
		var (
			rec    domain.AuditRecord
			itemID string
		)
		if err := rows.Scan(&itemID, &rec.ItemType, &rec.EmployeeID, &rec.Timestamp,
			&rec.AuditDate, &rec.AuditType, &rec.Notes, &rec.SessionID,
			&rec.SessionName, &rec.SessionMode); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.Status = domain.StatusAudit
		if rec.ItemType == domain.ItemCutter {
			rec.CutterID = itemID
		} else {
			rec.MoldID = itemID
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
