package cli

import (
	"testing"
	"time"
)

func TestParseSinceDuration(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"7d", false},
		{"30d", false},
		{"24h", false},
		{"1h", false},
		{"", false}, // defaults to one day
		{" 7d ", false},
		{"7w", true},
		{"abc", true},
		{"d", true},
		{"h", true},
		{"0d", true},
		{"-7d", true},
		{"0h", true},
		{"-24h", true},
	}

	for _, tt := range tests {
		_, err := parseSinceDuration(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSinceDuration(%q): err=%v, wantErr=%v", tt.input, err, tt.wantErr)
		}
	}
}

func TestParseSinceDuration_DefaultsToOneDay(t *testing.T) {
	got, err := parseSinceDuration("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Now().UTC().AddDate(0, 0, -1)
	if got.Sub(want) > time.Minute || want.Sub(got) > time.Minute {
		t.Fatalf("expected roughly one day ago, got %v", got)
	}
}

func TestParseSinceDuration_Days(t *testing.T) {
	got, err := parseSinceDuration("7d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Now().UTC().AddDate(0, 0, -7)
	if got.Sub(want) > time.Minute || want.Sub(got) > time.Minute {
		t.Fatalf("expected roughly 7 days ago, got %v", got)
	}
}
