package heavens

import (
	"errors"
	"testing"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"12:30:45", 45045},
		{"00:00:00", 0},
		{"23:59:59", 86399},
		{"08:09:07", 8*3600 + 9*60 + 7},
		{"09:08:09", 9*3600 + 8*60 + 9},
		{"007:00:010", 7*3600 + 10},
		// No range validation.
		{"25:99:99", 25*3600 + 99*60 + 99},
		{"596523:14:07", 2147483647},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseTimestamp(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	tests := []string{
		"",
		"12:30",
		"12:30:45:00",
		"12::45",
		"ab:30:45",
		"12:30:4x",
		"-1:30:45",
		"+1:30:45",
		" 12:30:45",
		"12:30:45.5",
		"99999999999999999999:00:00",
		"9223372036854775807:00:00",
		"3000000000000000:00:00",
		"2562047788015216:0:0",
		"0:9223372036854775807:0",
		"0:153722867280912931:0",
	}

	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, err := ParseTimestamp(in)
			if err == nil {
				t.Fatalf("ParseTimestamp(%q): expected error, got nil", in)
			}
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("ParseTimestamp(%q): error %v does not wrap ErrInvalidFormat", in, err)
			}
		})
	}
}

func TestClockField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Oct 15 05:12:34", "05:12:34"},
		{"19:24:37", "19:24:37"},
		{"  Oct 15\t05:12:34  ", "05:12:34"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ClockField(tt.in); got != tt.want {
			t.Errorf("ClockField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
