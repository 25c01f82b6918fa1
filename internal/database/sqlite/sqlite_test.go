package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/database"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), time.UTC)
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := Migrate(context.Background(), db.db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var n int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 recorded migration, got %d", n)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"001_init.sql", 1, false},
		{"012_add_index.sql", 12, false},
		{"000_bootstrap.sql", 0, false},
		{"init.sql", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVersion(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseVersion(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseVersion(%q) = %d, want %d", tt.name, got, tt.want)
			}
		})
	}
}

func TestRosterRepository_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t).Roster()
	last := time.Date(2024, 3, 4, 9, 5, 0, 0, time.UTC)

	err := repo.SaveRoster(ctx, []attendance.Identity{
		{ID: "100001", Name: "Budi", Class: "XII-A", TotalAttendance: 2, LastAttendance: &last},
		{ID: "100000", Name: "Ani", Class: "XII-B", Email: "ani@example.com"},
	})
	if err != nil {
		t.Fatalf("SaveRoster: %v", err)
	}

	got, err := repo.LoadRoster(ctx)
	if err != nil {
		t.Fatalf("LoadRoster: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(got))
	}
	if got[0].ID != "100000" || got[0].Email != "ani@example.com" || got[0].LastAttendance != nil {
		t.Errorf("unexpected first identity: %+v", got[0])
	}
	if got[1].LastAttendance == nil || !got[1].LastAttendance.Equal(last) {
		t.Errorf("expected last attendance %v, got %v", last, got[1].LastAttendance)
	}
}

func TestRosterRepository_UpsertKeepsMissingRows(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t).Roster()

	if err := repo.SaveRoster(ctx, []attendance.Identity{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatalf("SaveRoster: %v", err)
	}
	if err := repo.SaveRoster(ctx, []attendance.Identity{{ID: "a", TotalAttendance: 1}}); err != nil {
		t.Fatalf("SaveRoster: %v", err)
	}

	got, err := repo.LoadRoster(ctx)
	if err != nil {
		t.Fatalf("LoadRoster: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(got))
	}
	if got[0].TotalAttendance != 1 {
		t.Errorf("expected count 1 for a, got %d", got[0].TotalAttendance)
	}
}

func TestRosterRepository_RejectsNegativeCount(t *testing.T) {
	repo := openTestDB(t).Roster()

	err := repo.SaveRoster(context.Background(), []attendance.Identity{{ID: "a", TotalAttendance: -1}})
	if err == nil {
		t.Error("expected CHECK constraint error for negative count")
	}
}

func TestLedgerRepository_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	ledger := openTestDB(t).Ledger()
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ledger.AppendEvent(ctx, attendance.AttendanceEvent{
				EventID:    fmt.Sprintf("ev-%02d", i),
				IdentityID: "100000",
				Name:       "Ani",
				Timestamp:  base.Add(time.Duration(i) * time.Second),
				Status:     attendance.StatusPresent,
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	events, err := ledger.ListEvents(ctx, "100000", time.UTC)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != n {
		t.Fatalf("expected %d events, got %d", n, len(events))
	}
	for _, ev := range events {
		if ev.Status != attendance.StatusPresent {
			t.Errorf("unexpected status %q", ev.Status)
		}
	}
}

func TestLedgerRepository_DuplicateEventID(t *testing.T) {
	ctx := context.Background()
	ledger := openTestDB(t).Ledger()
	ev := attendance.AttendanceEvent{EventID: "same", IdentityID: "a", Timestamp: time.Now(), Status: attendance.StatusPresent}

	if err := ledger.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := ledger.AppendEvent(ctx, ev); err == nil {
		t.Error("expected unique constraint error on duplicate event id")
	}
}

func TestEnrollmentRepository_Replace(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t).Enrollments()

	first := []database.StoredEnrollment{
		{SourcePath: "a.jpg", Embedding: []float32{1, 0, 0}, DetScore: 0.9, Model: "buffalo_l"},
		{SourcePath: "b.jpg", Embedding: []float32{0, 1, 0}, DetScore: 0.8, Model: "buffalo_l"},
	}
	if err := repo.ReplaceEnrollments(ctx, "100000", first); err != nil {
		t.Fatalf("ReplaceEnrollments: %v", err)
	}
	if err := repo.ReplaceEnrollments(ctx, "100001", first[:1]); err != nil {
		t.Fatalf("ReplaceEnrollments: %v", err)
	}
	if err := repo.ReplaceEnrollments(ctx, "100000", []database.StoredEnrollment{
		{SourcePath: "c.jpg", Embedding: []float32{0, 0, -1.5}},
	}); err != nil {
		t.Fatalf("ReplaceEnrollments: %v", err)
	}

	n, err := repo.CountEnrollments(ctx)
	if err != nil {
		t.Fatalf("CountEnrollments: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 enrollments, got %d", n)
	}

	got, err := repo.ListEnrollments(ctx)
	if err != nil {
		t.Fatalf("ListEnrollments: %v", err)
	}
	var found bool
	for _, e := range got {
		if e.IdentityID == "100000" {
			found = true
			if e.SourcePath != "c.jpg" || len(e.Embedding) != 3 || e.Embedding[2] != -1.5 {
				t.Errorf("unexpected enrollment: %+v", e)
			}
		}
	}
	if !found {
		t.Error("replacement enrollment for 100000 missing")
	}
}

func TestDecodeEmbedding_BadLength(t *testing.T) {
	if _, err := decodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}

func TestWorker_ContextCanceled(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.Ledger().AppendEvent(ctx, attendance.AttendanceEvent{EventID: "x", IdentityID: "a", Timestamp: time.Now()})
	if err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestWorker_CancelAfterStartStillReportsCommit(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := db.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		cancel()
		_, err := tx.ExecContext(ctx, `INSERT INTO attendance_events (event_id, identity_id, name, timestamp, status)
			VALUES ('late', 'a', 'A', '2024-03-04 09:05:00', 'Present')`)
		return err
	})
	if err != nil {
		t.Fatalf("expected the started write to commit, got %v", err)
	}

	var n int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM attendance_events WHERE event_id = 'late'").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected the event stored once, got %d", n)
	}
}
