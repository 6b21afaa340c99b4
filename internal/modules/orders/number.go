package orders

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewOrderNumber builds a human-facing order number: millisecond timestamp
// plus a random suffix. The unique index on orders.order_number is the
// actual collision backstop.
func NewOrderNumber(now time.Time) string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		// degrade to the nanosecond clock; uniqueness still enforced by the index
		return fmt.Sprintf("LJ-%d-%06X", now.UnixMilli(), now.Nanosecond()%0xFFFFFF)
	}
	return fmt.Sprintf("LJ-%d-%s", now.UnixMilli(), hex.EncodeToString(b))
}
