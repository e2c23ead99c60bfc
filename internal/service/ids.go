package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

func randomHex(n int) string {
	buf := make([]byte, (n+1)/2)
	_, _ = rand.Read(buf)
	return strings.ToUpper(hex.EncodeToString(buf)[:n])
}

// Human-facing reference numbers carry a UTC timestamp plus a random suffix,
// e.g. ORD-20260830143015-4F2A1C.
func newReferenceNumber(prefix string) string {
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().UTC().Format("20060102150405"), randomHex(6))
}

func newOrderNumber() string        { return newReferenceNumber("ORD") }
func newPickingNumber() string      { return newReferenceNumber("PL") }
func newStockRequestNumber() string { return newReferenceNumber("SR") }

// newPickToken is the scan token printed on a pick slip.
func newPickToken() string {
	return "PICK-" + randomHex(8)
}
