package xid

import (
	"strings"
	"testing"
	"time"
)

func TestNewUsesPrefix(t *testing.T) {
	id := New("P")
	if !strings.HasPrefix(id, "P-") || len(id) != len("P-")+36 {
		t.Fatalf("unexpected id %q", id)
	}
	if New("P") == id {
		t.Fatalf("expected distinct ids")
	}
}

func TestInvoiceIsDistinctWithinSameMillisecond(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		inv := Invoice(now)
		if !strings.HasPrefix(inv, "INV-") || len(inv) != 10 {
			t.Fatalf("unexpected invoice %q", inv)
		}
		if seen[inv] {
			t.Fatalf("duplicate invoice %q", inv)
		}
		seen[inv] = true
	}
}

func TestProductCodeFormat(t *testing.T) {
	code := ProductCode(time.Now())
	if !strings.HasPrefix(code, "C-") || len(code) != 8 {
		t.Fatalf("unexpected code %q", code)
	}
}
