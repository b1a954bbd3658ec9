package tour

import (
	"math"
	"strconv"
	"strings"
)

// ParsePrice extracts every decimal digit from raw and reads them as one
// integer, so "€2,192" and "2.192 €" both yield 2192. Input without digits
// yields 0. Overlong digit runs saturate at math.MaxInt64.
func ParsePrice(raw string) int64 {
	var n int64
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int64(c - '0')
		if n > (math.MaxInt64-d)/10 {
			return math.MaxInt64
		}
		n = n*10 + d
	}
	return n
}

// FormatPrice renders amount with a currency symbol and comma thousands
// separators, e.g. FormatPrice(3017, "€") == "€3,017".
func FormatPrice(amount int64, symbol string) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}

	s := strconv.FormatInt(amount, 10)

	var b strings.Builder
	b.Grow(len(s) + len(s)/3 + len(symbol) + 1)
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(symbol)

	rem := len(s) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(s[:rem])
	for i := rem; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
