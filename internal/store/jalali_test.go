package store

import (
	"testing"
	"time"
)

func TestGregorianToJalali(t *testing.T) {
	tests := []struct {
		gy, gm, gd int
		jy, jm, jd int
	}{
		{1970, 1, 1, 1348, 10, 11},
		{2021, 3, 21, 1400, 1, 1},  // Nowruz
		{2024, 3, 20, 1403, 1, 1},  // Nowruz in a Gregorian leap year
		{2023, 10, 15, 1402, 7, 23},
		{2024, 3, 19, 1402, 12, 29}, // last day of 1402
	}
	for _, tt := range tests {
		jy, jm, jd := gregorianToJalali(tt.gy, tt.gm, tt.gd)
		if jy != tt.jy || jm != tt.jm || jd != tt.jd {
			t.Errorf("gregorianToJalali(%d,%d,%d) = %d-%d-%d, want %d-%d-%d",
				tt.gy, tt.gm, tt.gd, jy, jm, jd, tt.jy, tt.jm, tt.jd)
		}
	}
}

func TestDateLabel(t *testing.T) {
	d := time.Date(2021, 3, 21, 23, 59, 0, 0, time.Local)
	if got := DateLabel(d); got != "1400-01-01" {
		t.Fatalf("DateLabel = %q, want 1400-01-01", got)
	}
}
