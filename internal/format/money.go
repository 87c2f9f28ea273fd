package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"dealcast/internal/models"
)

// Money renders a price as "$8,500" (whole amounts) or "$8,500.50".
// All channels share this so a deal never renders two different prices.
func Money(v float64) string {
	neg := v < 0
	v = math.Abs(v)

	whole := int64(v)
	frac := math.Round((v - float64(whole)) * 100)
	if frac >= 100 {
		whole++
		frac = 0
	}

	s := groupThousands(strconv.FormatInt(whole, 10))
	if frac > 0 {
		s += fmt.Sprintf(".%02d", int(frac))
	}
	if neg {
		return "-$" + s
	}
	return "$" + s
}

func groupThousands(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	var b strings.Builder
	rem := n % 3
	if rem > 0 {
		b.WriteString(digits[:rem])
	}
	for i := rem; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// discountTag renders "(29% OFF)" or "" when no discount is known.
// The percentage rounds to nearest whole percent, uniformly everywhere.
func discountTag(d models.Deal) string {
	pct, ok := d.DiscountPercent()
	if !ok {
		return ""
	}
	return fmt.Sprintf("(%d%% OFF)", pct)
}
