package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidInput is returned for out-of-range scores, zero totals, missing
// answer maps and non-numeric bands fed into aggregation.
var ErrInvalidInput = errors.New("invalid input")

// BelowMinimumLabel is how the below-minimum band is rendered.
const BelowMinimumLabel = "Below 4.0"

const (
	minBand = 0.0
	maxBand = 9.0
)

// Band is an IELTS band: either a numeric value in half steps or the
// below-minimum sentinel. The zero value is the numeric band 0.0.
type Band struct {
	halves int // band * 2
	below  bool
}

// NumericBand returns a numeric band. v must be in [0, 9] and a multiple of 0.5.
func NumericBand(v float64) (Band, error) {
	if v < minBand || v > maxBand {
		return Band{}, fmt.Errorf("%w: band %v outside %.1f..%.1f", ErrInvalidInput, v, minBand, maxBand)
	}
	h := v * 2
	if h != float64(int(h)) {
		return Band{}, fmt.Errorf("%w: band %v is not a half step", ErrInvalidInput, v)
	}
	return Band{halves: int(h)}, nil
}

// BelowMinimum returns the sentinel band for scores under the lowest threshold.
func BelowMinimum() Band {
	return Band{below: true}
}

func bandFromHalves(h int) Band {
	return Band{halves: h}
}

// IsNumeric reports whether b carries a numeric value.
func (b Band) IsNumeric() bool {
	return !b.below
}

// Value returns the numeric band. ok is false for the sentinel.
func (b Band) Value() (v float64, ok bool) {
	if b.below {
		return 0, false
	}
	return float64(b.halves) / 2, true
}

// Less orders bands, with the sentinel below every numeric band.
func (b Band) Less(o Band) bool {
	switch {
	case b.below && o.below:
		return false
	case b.below:
		return true
	case o.below:
		return false
	}
	return b.halves < o.halves
}

func (b Band) String() string {
	if b.below {
		return BelowMinimumLabel
	}
	return strconv.FormatFloat(float64(b.halves)/2, 'f', 1, 64)
}

// Tier is the display bucket used by result pages.
func (b Band) Tier() string {
	if b.below {
		return "band-low"
	}
	switch {
	case b.halves >= 18:
		return "band-9"
	case b.halves >= 16:
		return "band-8"
	case b.halves >= 14:
		return "band-7"
	case b.halves >= 12:
		return "band-6"
	case b.halves >= 10:
		return "band-5"
	}
	return "band-low"
}

// ParseBand parses "6.5", "7" or "Below 4.0".
func ParseBand(s string) (Band, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, BelowMinimumLabel) {
		return BelowMinimum(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Band{}, fmt.Errorf("%w: band %q is not a number", ErrInvalidInput, s)
	}
	return NumericBand(v)
}

func (b Band) MarshalJSON() ([]byte, error) {
	if b.below {
		return json.Marshal(BelowMinimumLabel)
	}
	return []byte(b.String()), nil
}

func (b *Band) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseBand(s)
		if err != nil {
			return err
		}
		*b = parsed
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: band must be a number or %q", ErrInvalidInput, BelowMinimumLabel)
	}
	parsed, err := NumericBand(v)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
