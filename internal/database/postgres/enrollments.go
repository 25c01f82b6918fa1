package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MMOSHII/Face-Attendance-System/internal/database"
	"github.com/pgvector/pgvector-go"
)

// EnrollmentRepository provides PostgreSQL-backed enrollment storage using pgvector
type EnrollmentRepository struct {
	pool *Pool
}

// NewEnrollmentRepository creates a new PostgreSQL enrollment repository
func NewEnrollmentRepository(pool *Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// ListEnrollments returns all enrollments ordered by ID
func (r *EnrollmentRepository) ListEnrollments(ctx context.Context) ([]database.StoredEnrollment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, identity_id, source_path, embedding, det_score, model, created_at
		FROM enrollments
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []database.StoredEnrollment
	for rows.Next() {
		var e database.StoredEnrollment
		var vec pgvector.Vector
		if err := rows.Scan(&e.ID, &e.IdentityID, &e.SourcePath, &vec, &e.DetScore, &e.Model, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		e.Embedding = vec.Slice()
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return enrollments, nil
}

// CountEnrollments returns the number of stored enrollments
func (r *EnrollmentRepository) CountEnrollments(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM enrollments").Scan(&count); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// ReplaceEnrollments deletes the identity's enrollments and inserts the new set in one transaction
func (r *EnrollmentRepository) ReplaceEnrollments(ctx context.Context, identityID string, enrollments []database.StoredEnrollment) error {
	for _, e := range enrollments {
		if len(e.Embedding) != database.EnrollmentEmbeddingDim {
			return fmt.Errorf("enrollment %s: embedding has %d dimensions, want %d",
				e.SourcePath, len(e.Embedding), database.EnrollmentEmbeddingDim)
		}
	}

	err := r.pool.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM enrollments WHERE identity_id = $1", identityID); err != nil {
			return fmt.Errorf("delete enrollments: %w", err)
		}
		for _, e := range enrollments {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO enrollments (identity_id, source_path, embedding, det_score, model)
				VALUES ($1, $2, $3, $4, $5)
			`, identityID, e.SourcePath, pgvector.NewVector(e.Embedding), e.DetScore, e.Model); err != nil {
				return fmt.Errorf("insert enrollment %s: %w", e.SourcePath, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace enrollments for %s: %w", identityID, err)
	}
	return nil
}
