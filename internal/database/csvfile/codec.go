package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/constants"
)

// RosterHeader is the column order written to students.csv.
var RosterHeader = []string{"id", "nama", "kelas", "total_kehadiran", "email", "nomor_telepon", "waktu_kehadiran"}

// LedgerHeader is the column order of attendance.csv.
var LedgerHeader = []string{"id", "name", "timestamp", "status"}

// columnAliases maps accepted header names to canonical fields.
var columnAliases = map[string]string{
	"id":               "id",
	"nama":             "name",
	"name":             "name",
	"kelas":            "class",
	"class":            "class",
	"total_kehadiran":  "total",
	"total_attendance": "total",
	"email":            "email",
	"nomor_telepon":    "phone",
	"phone":            "phone",
	"waktu_kehadiran":  "last",
	"last_attendance":  "last",
}

// ReadRoster parses a roster CSV. The header may use the Indonesian or the
// English column names. Rows with an empty id are returned with ID "" so
// callers can assign one with AssignIDs.
func ReadRoster(r io.Reader, loc *time.Location) ([]attendance.Identity, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		if field, ok := columnAliases[h]; ok {
			cols[field] = i
		}
	}
	if _, ok := cols["id"]; !ok {
		return nil, errors.New("roster csv has no id column")
	}

	get := func(rec []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []attendance.Identity
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ident := attendance.Identity{
			ID:    get(rec, "id"),
			Name:  get(rec, "name"),
			Class: get(rec, "class"),
			Email: get(rec, "email"),
			Phone: get(rec, "phone"),
		}
		if total := get(rec, "total"); total != "" {
			n, err := strconv.Atoi(total)
			if err != nil {
				return nil, fmt.Errorf("line %d: total_kehadiran %q: %w", line, total, err)
			}
			ident.TotalAttendance = n
		}
		if last := get(rec, "last"); last != "" {
			t, err := attendance.ParseTimestamp(last, loc)
			if err != nil {
				return nil, fmt.Errorf("line %d: waktu_kehadiran %q: %w", line, last, err)
			}
			ident.LastAttendance = &t
		}
		out = append(out, ident)
	}
	return out, nil
}

// WriteRoster writes identities in RosterHeader order.
func WriteRoster(w io.Writer, identities []attendance.Identity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RosterHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, ident := range identities {
		last := ""
		if ident.LastAttendance != nil {
			last = attendance.FormatTimestamp(*ident.LastAttendance)
		}
		if err := cw.Write([]string{
			ident.ID, ident.Name, ident.Class, strconv.Itoa(ident.TotalAttendance),
			ident.Email, ident.Phone, last,
		}); err != nil {
			return fmt.Errorf("write identity %s: %w", ident.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush roster: %w", err)
	}
	return nil
}

// AssignIDs gives every identity without an ID the next numeric ID: the first
// one is constants.FirstIdentityID, later ones follow the highest numeric ID
// seen in existing and identities. It returns how many IDs were assigned.
func AssignIDs(existing, identities []attendance.Identity) int {
	next := 0
	for _, list := range [][]attendance.Identity{existing, identities} {
		for _, ident := range list {
			if n, err := strconv.Atoi(ident.ID); err == nil && n+1 > next {
				next = n + 1
			}
		}
	}
	if next == 0 {
		next = constants.FirstIdentityID
	}

	assigned := 0
	for i := range identities {
		if identities[i].ID != "" {
			continue
		}
		identities[i].ID = strconv.Itoa(next)
		next++
		assigned++
	}
	return assigned
}

// ledgerRecord renders one ledger line, including the trailing newline.
func ledgerRecord(event attendance.AttendanceEvent) ([]byte, error) {
	var b strings.Builder
	cw := csv.NewWriter(&b)
	if err := cw.Write([]string{
		event.IdentityID, event.Name, attendance.FormatTimestamp(event.Timestamp), string(event.Status),
	}); err != nil {
		return nil, err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}
