package xid

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

var (
	stampMu   sync.Mutex
	lastStamp int64
)

// stamp returns a millisecond timestamp that strictly increases within the
// process, so two calls in the same millisecond still differ.
func stamp(now time.Time) int64 {
	stampMu.Lock()
	defer stampMu.Unlock()
	ms := now.UnixMilli()
	if ms <= lastStamp {
		ms = lastStamp + 1
	}
	lastStamp = ms
	return ms
}

// Invoice returns an invoice number like INV-482913 built from the low six
// digits of the current millisecond clock.
func Invoice(now time.Time) string {
	return fmt.Sprintf("INV-%06d", stamp(now)%1_000_000)
}

// ProductCode is the SKU assigned to products added without one.
func ProductCode(now time.Time) string {
	return fmt.Sprintf("C-%06d", stamp(now)%1_000_000)
}
