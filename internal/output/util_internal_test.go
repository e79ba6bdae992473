//go:build unit

package output

import "testing"

func TestIntToString(t *testing.T) {
	if got, want := intToString(42), "42"; got != want {
		t.Errorf("intToString(42) = %q, want %q", got, want)
	}
}

func TestBoolToString(t *testing.T) {
	if got, want := boolToString(true), "true"; got != want {
		t.Errorf("boolToString(true) = %q, want %q", got, want)
	}
	if got, want := boolToString(false), "false"; got != want {
		t.Errorf("boolToString(false) = %q, want %q", got, want)
	}
}

func TestFormatMonthsInternal(t *testing.T) {
	cases := map[int]string{0: "0m", 11: "11m", 12: "1y", 30: "2y 6m"}
	for n, want := range cases {
		if got := FormatMonths(n); got != want {
			t.Errorf("FormatMonths(%d) = %q, want %q", n, got, want)
		}
	}
}
