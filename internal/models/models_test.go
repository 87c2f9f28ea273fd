package models

import (
	"strings"
	"testing"
)

func fptr(v float64) *float64 { return &v }

func TestDiscountPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		price    float64
		original *float64
		want     int
		ok       bool
	}{
		{name: "rolex scenario", price: 8500, original: fptr(12000), want: 29, ok: true},
		{name: "rounds up", price: 3500, original: fptr(12000), want: 71, ok: true},
		{name: "no original", price: 100, original: nil},
		{name: "zero original", price: 100, original: fptr(0)},
		{name: "price above original", price: 150, original: fptr(100)},
		{name: "equal prices", price: 100, original: fptr(100)},
		{name: "negligible discount", price: 99.9, original: fptr(100)},
		{name: "half percent rounds to one", price: 99.4, original: fptr(100), want: 1, ok: true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := Deal{Price: tc.price, OriginalPrice: tc.original}
			got, ok := d.DiscountPercent()
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if got != tc.want {
				t.Fatalf("pct = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestParseChannel(t *testing.T) {
	t.Parallel()

	for _, ch := range Channels() {
		got, err := ParseChannel(strings.ToUpper(ch.String()))
		if err != nil {
			t.Fatalf("ParseChannel(%s): %v", ch, err)
		}
		if got != ch {
			t.Fatalf("got %s, want %s", got, ch)
		}
	}
	if _, err := ParseChannel("carrier-pigeon"); err == nil {
		t.Fatal("unknown channel accepted")
	}
	if _, err := ParseChannel(""); err == nil {
		t.Fatal("empty channel accepted")
	}
}

func TestCycleReportSummary(t *testing.T) {
	t.Parallel()

	r := CycleReport{Channel: ChannelMicroblog, Posted: 2, Skipped: 3, Errors: 1}
	want := "microblog: posted=2 skipped=3 errors=1"
	if got := r.Summary(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	r.Reason = "rate_limited"
	r.DryRun = true
	s := r.Summary()
	if !strings.Contains(s, "reason=rate_limited") || !strings.Contains(s, "(dry-run)") {
		t.Fatalf("summary missing annotations: %q", s)
	}
}
