package attendance

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"09:00", 9 * time.Hour, false},
		{"23:59", 23*time.Hour + 59*time.Minute, false},
		{"08:59:59", 8*time.Hour + 59*time.Minute + 59*time.Second, false},
		{"00:00", 0, false},
		{" 07:30 ", 7*time.Hour + 30*time.Minute, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"9:00", 0, true},
		{"0900", 0, true},
		{"aa:bb", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfiguration) {
					t.Errorf("ParseTimeOfDay(%q) error = %v, want ErrInvalidConfiguration", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q) unexpected error: %v", tt.input, err)
			}
			if time.Duration(got) != tt.want {
				t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tt.input, time.Duration(got), tt.want)
			}
		})
	}
}

func TestTimeOfDayString(t *testing.T) {
	tod, _ := ParseTimeOfDay("09:05")
	if tod.String() != "09:05" {
		t.Errorf("expected 09:05, got %s", tod)
	}
	tod, _ = ParseTimeOfDay("08:59:59")
	if tod.String() != "08:59:59" {
		t.Errorf("expected 08:59:59, got %s", tod)
	}
}

func TestParseTimeWindow_StartAfterEnd(t *testing.T) {
	_, err := ParseTimeWindow("18:00", "09:00")
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for wrapping window, got %v", err)
	}
}

func TestParseTimeWindow_SingleInstant(t *testing.T) {
	w, err := ParseTimeWindow("12:00", "12:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.Contains(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Error("expected window to contain its only instant")
	}
	if w.Contains(time.Date(2025, 3, 1, 12, 0, 1, 0, time.UTC)) {
		t.Error("expected 12:00:01 to be outside a 12:00-12:00 window")
	}
}

func TestTimeWindowContains(t *testing.T) {
	w, err := ParseTimeWindow("09:00", "23:59")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	day := func(h, m, s int) time.Time { return time.Date(2025, 3, 1, h, m, s, 0, time.UTC) }

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"start bound", day(9, 0, 0), true},
		{"end bound", day(23, 59, 0), true},
		{"inside", day(12, 30, 0), true},
		{"one second early", day(8, 59, 59), false},
		{"after end", day(23, 59, 1), false},
		{"midnight", day(0, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Contains(tt.at); got != tt.want {
				t.Errorf("Contains(%s) = %v, want %v", tt.at.Format(time.TimeOnly), got, tt.want)
			}
		})
	}
}

func TestTimeWindowMarshalText(t *testing.T) {
	w, _ := ParseTimeWindow("09:00", "17:30")
	b, err := w.MarshalText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != "09:00-17:30" {
		t.Errorf("expected 09:00-17:30, got %s", b)
	}
}
