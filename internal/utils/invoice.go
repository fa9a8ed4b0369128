package utils

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"
)

// Crockford base32: no I, L, O or U, so numbers read back over the phone.
const orderNumberAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const orderNumberSuffixLen = 6

// GenerateOrderNumber returns ORD-<base36 unix millis>-<6 random chars>,
// e.g. ORD-M1X9K2QZ-7HQ2TB. Numbers sort by creation time.
func GenerateOrderNumber() string {
	return orderNumberAt(time.Now())
}

func orderNumberAt(t time.Time) string {
	base := strings.ToUpper(strconv.FormatInt(t.UnixMilli(), 36))

	buf := make([]byte, orderNumberSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return "ORD-" + base + "-" + string(buf)
}
