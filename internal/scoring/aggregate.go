package scoring

import (
	"fmt"
	"math"
)

// Composite is the overall result of a full mock test.
type Composite struct {
	Listening Band `json:"listening_band"`
	Reading   Band `json:"reading_band"`
	Writing   Band `json:"writing_band"`
	Overall   Band `json:"overall_band"`
}

// Aggregate combines Listening and Reading scores with an assigned Writing
// band into an overall band rounded half-up to the nearest 0.5. A section
// below the minimum band cannot be averaged and yields ErrInvalidInput.
func (c Converter) Aggregate(listeningScore, listeningTotal, readingScore, readingTotal int, writing Band) (Composite, error) {
	listening, err := c.BandForListening(listeningScore, listeningTotal)
	if err != nil {
		return Composite{}, fmt.Errorf("listening: %w", err)
	}
	reading, err := c.BandForReading(readingScore, readingTotal)
	if err != nil {
		return Composite{}, fmt.Errorf("reading: %w", err)
	}
	return Combine(listening, reading, writing)
}

// Combine averages three section bands. Every band must be numeric.
func Combine(listening, reading, writing Band) (Composite, error) {
	for _, s := range []struct {
		name string
		band Band
	}{
		{"listening", listening},
		{"reading", reading},
		{"writing", writing},
	} {
		if !s.band.IsNumeric() {
			return Composite{}, fmt.Errorf("%w: %s band is %s and cannot be averaged", ErrInvalidInput, s.name, BelowMinimumLabel)
		}
	}

	sum := listening.halves + reading.halves + writing.halves
	return Composite{
		Listening: listening,
		Reading:   reading,
		Writing:   writing,
		Overall:   bandFromHalves(roundThirdHalves(sum)),
	}, nil
}

// roundThirdHalves returns round_half_up(sum/3) in half-band units.
func roundThirdHalves(sum int) int {
	return (2*sum + 3) / 6
}

// RoundToHalf rounds v half-up to the nearest 0.5. Negative values round
// toward negative infinity, so they stay negative.
func RoundToHalf(v float64) float64 {
	return math.Floor(v*2+0.5) / 2
}

// Aggregate uses ModeRaw.
func Aggregate(listeningScore, listeningTotal, readingScore, readingTotal int, writing Band) (Composite, error) {
	return Converter{}.Aggregate(listeningScore, listeningTotal, readingScore, readingTotal, writing)
}
