package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	domain "github.com/AZEINMU1911/CVATS-Vibe/internal/domain/analysis"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Save inserts an outcome record. Outcomes are immutable; the upsert only
// guards against a replayed insert of the same id.
func (r *AnalysisRepository) Save(ctx context.Context, o *domain.Outcome) error {
	const q = `
INSERT INTO analyses
  (id, document_id, owner_id, result_json, used_fallback, fallback_reason, created_at)
VALUES (?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE id=id;
`
	result, err := json.Marshal(o.Result)
	if err != nil {
		return err
	}
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = r.db.ExecContext(ctx, q,
		o.ID, stringOrDash(o.DocumentID), stringOrDash(o.OwnerID),
		string(result), o.UsedFallback, string(o.FallbackReason), createdAt,
	)
	return err
}

// Paginate returns a page of outcome records ordered by created_at desc
func (r *AnalysisRepository) Paginate(ctx context.Context, owner string, documentID string, page, pageSize int) ([]*domain.Outcome, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, document_id, owner_id, result_json, used_fallback, fallback_reason, created_at
FROM analyses
WHERE owner_id=? AND document_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, owner, documentID, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// LatestByDocument returns the newest outcome for a document; nil when absent
func (r *AnalysisRepository) LatestByDocument(ctx context.Context, owner string, documentID string) (*domain.Outcome, error) {
	const q = `
SELECT id, document_id, owner_id, result_json, used_fallback, fallback_reason, created_at
FROM analyses
WHERE owner_id=? AND document_id=?
ORDER BY created_at DESC, id DESC
LIMIT 1;
`
	o, err := scanOutcome(r.db.QueryRowContext(ctx, q, owner, documentID).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func scanOutcome(scan func(...any) error) (*domain.Outcome, error) {
	var o domain.Outcome
	var resultJSON string
	var reason string
	var created time.Time
	if err := scan(&o.ID, &o.DocumentID, &o.OwnerID, &resultJSON, &o.UsedFallback, &reason, &created); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resultJSON) != "" {
		if err := json.Unmarshal([]byte(resultJSON), &o.Result); err != nil {
			return nil, err
		}
	}
	o.FallbackReason = domain.FallbackReason(reason)
	o.CreatedAt = created
	return &o, nil
}
