package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/database"
)

type EnrollmentRepository struct {
	db     *sql.DB
	writer *Worker
}

// encodeEmbedding packs a vector as little-endian float32s.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes, not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func (r *EnrollmentRepository) ListEnrollments(ctx context.Context) ([]database.StoredEnrollment, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, identity_id, source_path, embedding, det_score, model, created_at_ms
FROM enrollments
ORDER BY id;
`)
	if err != nil {
		return nil, fmt.Errorf("ListEnrollments query: %w", err)
	}
	defer rows.Close()

	var out []database.StoredEnrollment
	for rows.Next() {
		var e database.StoredEnrollment
		var blob []byte
		var createdMs int64
		if err := rows.Scan(&e.ID, &e.IdentityID, &e.SourcePath, &blob, &e.DetScore, &e.Model, &createdMs); err != nil {
			return nil, fmt.Errorf("ListEnrollments scan: %w", err)
		}
		if e.Embedding, err = decodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("ListEnrollments id %d: %w", e.ID, err)
		}
		e.CreatedAt = time.UnixMilli(createdMs)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListEnrollments rows: %w", err)
	}
	return out, nil
}

func (r *EnrollmentRepository) CountEnrollments(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM enrollments;").Scan(&n); err != nil {
		return 0, fmt.Errorf("CountEnrollments: %w", err)
	}
	return n, nil
}

func (r *EnrollmentRepository) ReplaceEnrollments(ctx context.Context, identityID string, enrollments []database.StoredEnrollment) error {
	return r.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM enrollments WHERE identity_id = ?;", identityID); err != nil {
			return fmt.Errorf("ReplaceEnrollments delete: %w", err)
		}
		nowMs := time.Now().UTC().UnixMilli()
		for _, e := range enrollments {
			if len(e.Embedding) == 0 {
				return fmt.Errorf("ReplaceEnrollments %s: empty embedding", e.SourcePath)
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO enrollments(identity_id, source_path, embedding, det_score, model, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`, identityID, e.SourcePath, encodeEmbedding(e.Embedding), e.DetScore, e.Model, nowMs); err != nil {
				return fmt.Errorf("ReplaceEnrollments insert %s: %w", e.SourcePath, err)
			}
		}
		return nil
	})
}
