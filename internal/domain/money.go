package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is a signed amount in minor currency units. All engine arithmetic uses Cents;
// decimal values only appear when parsing input or rendering output.
type Cents int64

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// CentsFromDecimal rounds d half away from zero to the nearest minor unit. d must fit the
// Cents range, which every value from ParseAmount and ParseAmountValue does; use
// CheckedCents for anything else.
func CentsFromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Shift(2).Round(0).IntPart())
}

// CheckedCents is CentsFromDecimal that rejects values outside the Cents range.
func CheckedCents(d decimal.Decimal) (Cents, error) {
	c := d.Shift(2).Round(0)
	if c.GreaterThan(maxCents) || c.LessThan(minCents) {
		return 0, fmt.Errorf("%w: %s exceeds the supported range", ErrInvalidAmount, d)
	}
	return Cents(c.IntPart()), nil
}

// ParseCents parses a currency formatted string straight into minor units.
func ParseCents(s string) (Cents, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return 0, err
	}
	return CheckedCents(d)
}

// Decimal converts c back to a two-place decimal.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// Abs returns the absolute value of c.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// MarshalJSON renders c as a quoted decimal string ("12.50") so no precision is lost in transit.
func (c Cents) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts both quoted currency strings and bare JSON numbers.
func (c *Cents) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
		}
		s = n.String()
	}

	parsed, err := ParseCents(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

var (
	// Optional sign, optional currency symbol or ISO code, optional sign, then digits with
	// comma thousands separators and an optional fraction.
	amountPattern   = regexp.MustCompile(`^([+-]?)\s*(?:[$€£]|[A-Z]{3})?\s*([+-]?)((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?|\.\d+)$`)
	exponentPattern = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)[eE][+-]?\d{1,3}$`)
)

// ParseAmount parses carrier formatted currency such as "$1,234.50", "(12.00)", "12.00-", "USD 5"
// or an exponent form like "1.5E2". Parentheses and a trailing minus follow accounting notation
// for negatives and cannot be combined with another sign. Anything else, and any value outside
// the Cents range, is ErrInvalidAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	invalid := fmt.Errorf("%w: %q", ErrInvalidAmount, s)

	neg := false
	if strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")") {
		neg = true
		raw = strings.TrimSpace(raw[1 : len(raw)-1])
	}
	if strings.HasSuffix(raw, "-") {
		if neg {
			return decimal.Zero, invalid
		}
		neg = true
		raw = strings.TrimSpace(strings.TrimSuffix(raw, "-"))
	}

	var d decimal.Decimal
	if exponentPattern.MatchString(raw) {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, invalid
		}
		d = parsed
	} else {
		m := amountPattern.FindStringSubmatch(raw)
		if m == nil || (m[1] != "" && m[2] != "") {
			return decimal.Zero, invalid
		}
		parsed, err := decimal.NewFromString(strings.ReplaceAll(m[3], ",", ""))
		if err != nil {
			return decimal.Zero, invalid
		}
		if m[1] == "-" || m[2] == "-" {
			parsed = parsed.Neg()
		}
		d = parsed
	}

	if neg {
		if d.IsNegative() {
			return decimal.Zero, invalid
		}
		d = d.Neg()
	}
	if _, err := CheckedCents(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ParseAmountValue accepts the loosely typed values registries and extractors hand over.
// The result always fits the Cents range.
func ParseAmountValue(v any) (decimal.Decimal, error) {
	d, err := amountValue(v)
	if err != nil {
		return decimal.Zero, err
	}
	if _, err := CheckedCents(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

func amountValue(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("%w: missing value", ErrInvalidAmount)
	case decimal.Decimal:
		return val, nil
	case string:
		return ParseAmount(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, val)
		}
		return decimal.NewFromFloat(val), nil
	case float32:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, val)
		}
		return decimal.NewFromFloat32(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case json.Number:
		return ParseAmount(val.String())
	default:
		return ParseAmount(fmt.Sprint(val))
	}
}
