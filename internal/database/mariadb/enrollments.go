package mariadb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/database"
)

// EnrollmentRepository stores enrollment embeddings as JSON lists in a mediumblob.
type EnrollmentRepository struct {
	pool *Pool
}

func NewEnrollmentRepository(pool *Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

func (r *EnrollmentRepository) ListEnrollments(ctx context.Context) ([]database.StoredEnrollment, error) {
	rows, err := r.pool.db.QueryContext(ctx, `SELECT id, identity_id, source_path, embedding_json, det_score, model, created_at_ms
		FROM enrollments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	var out []database.StoredEnrollment
	for rows.Next() {
		var e database.StoredEnrollment
		var data []byte
		var createdMs int64
		if err := rows.Scan(&e.ID, &e.IdentityID, &e.SourcePath, &data, &e.DetScore, &e.Model, &createdMs); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		if err := json.Unmarshal(data, &e.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshal embedding of enrollment %d: %w", e.ID, err)
		}
		e.CreatedAt = time.UnixMilli(createdMs)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return out, nil
}

func (r *EnrollmentRepository) CountEnrollments(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM enrollments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return n, nil
}

func (r *EnrollmentRepository) ReplaceEnrollments(ctx context.Context, identityID string, enrollments []database.StoredEnrollment) error {
	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE identity_id = ?`, identityID); err != nil {
		return fmt.Errorf("delete enrollments for %s: %w", identityID, err)
	}

	nowMs := time.Now().UTC().UnixMilli()
	for _, e := range enrollments {
		data, err := json.Marshal(e.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO enrollments
			(identity_id, source_path, embedding_json, det_score, model, created_at_ms) VALUES (?, ?, ?, ?, ?, ?)`,
			identityID, e.SourcePath, data, e.DetScore, e.Model, nowMs); err != nil {
			return fmt.Errorf("insert enrollment %s: %w", e.SourcePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollments: %w", err)
	}
	return nil
}
