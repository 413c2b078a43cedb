package recurrence

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  []time.Weekday
	}{
		{"MO,WE,FR", []time.Weekday{time.Monday, time.Wednesday, time.Friday}},
		{"BYDAY=SA,SU", []time.Weekday{time.Saturday, time.Sunday}},
		{"su, mo", []time.Weekday{time.Monday, time.Sunday}},
		{"TU,TU", []time.Weekday{time.Tuesday}},
	}

	for _, tt := range tests {
		w, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.input, err)
			continue
		}
		got := w.Days()
		if len(got) != len(tt.want) {
			t.Errorf("Parse(%q) days = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Parse(%q)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{"", "XX", "MO,FUN", "BYDAY="} {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) should fail", input)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	inputs := []string{"MO", "MO,WE,FR", "TU,TH,SA,SU"}
	for _, input := range inputs {
		w, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", input, err)
		}
		if w.String() != input {
			t.Errorf("String() = %q, want %q", w.String(), input)
		}
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"MO,TU,WE,TH,FR", "Weekdays"},
		{"SA,SU", "Weekends"},
		{"MO,TU,WE,TH,FR,SA,SU", "Every day"},
		{"MO,WE", "Every Mon, Wed"},
	}
	for _, tt := range tests {
		w, _ := Parse(tt.input)
		if got := w.Describe(); got != tt.want {
			t.Errorf("Describe(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestExpand(t *testing.T) {
	w := Of(time.Monday, time.Wednesday, time.Friday)
	from := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC) // Monday
	to := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)   // Sunday

	got := w.Expand(from, to)
	want := []string{"2026-03-02", "2026-03-04", "2026-03-06", "2026-03-09", "2026-03-11", "2026-03-13"}
	if len(got) != len(want) {
		t.Fatalf("got %d dates, want %d", len(got), len(want))
	}
	for i, d := range got {
		if d.Format(DateLayout) != want[i] {
			t.Errorf("date[%d] = %s, want %s", i, d.Format(DateLayout), want[i])
		}
		if d.Hour() != 0 {
			t.Errorf("date[%d] not truncated: %v", i, d)
		}
	}
}

func TestExpandEmptyAndInverted(t *testing.T) {
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if got := Weekdays(0).Expand(from, from.AddDate(0, 0, 7)); len(got) != 0 {
		t.Errorf("empty set expanded to %d dates", len(got))
	}
	if got := Of(time.Monday).Expand(from, from.AddDate(0, 0, -1)); len(got) != 0 {
		t.Errorf("inverted range expanded to %d dates", len(got))
	}
}

func TestNext(t *testing.T) {
	w := Of(time.Thursday)
	got, ok := w.Next(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatal("Next should find a date")
	}
	if got.Format(DateLayout) != "2026-03-05" {
		t.Errorf("Next = %s, want 2026-03-05", got.Format(DateLayout))
	}
	if _, ok := Weekdays(0).Next(time.Now()); ok {
		t.Error("empty set should have no next date")
	}
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("KST", 9*60*60)
	d, err := ParseDate("2026-03-02", loc)
	if err != nil {
		t.Fatalf("ParseDate error: %v", err)
	}
	if d.Location() != loc || d.Day() != 2 {
		t.Errorf("ParseDate = %v", d)
	}
	if _, err := ParseDate("2026/03/02", loc); err == nil {
		t.Error("expected error for bad layout")
	}
}
