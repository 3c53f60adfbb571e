package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateOrderNumber returns a human friendly order number such as
// TIX-20261017-7KQ2MX.
func GenerateOrderNumber(now time.Time) string {
	suffix := make([]byte, 6)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(orderNumberAlphabet))))
		if err != nil {
			// Fall back to the clock so an order number is always produced.
			n = big.NewInt(now.UnixNano() >> (i * 5) % int64(len(orderNumberAlphabet)))
		}
		suffix[i] = orderNumberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("TIX-%s-%s", now.UTC().Format("20060102"), suffix)
}

// GenerateBarcode returns a 16 digit numeric barcode for a ticket.
func GenerateBarcode() string {
	var b strings.Builder
	for i := 0; i < 16; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			n = big.NewInt(int64(time.Now().Nanosecond() % 10))
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String()
}

// Slugify lowercases s and joins its letters and digits with single dashes,
// then appends the base36 creation timestamp so slugs stay unique.
func Slugify(s string, now time.Time) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	base := b.String()
	if base == "" {
		base = "event"
	}
	return base + "-" + strconv.FormatInt(now.UnixMilli(), 36)
}
