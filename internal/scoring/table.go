package scoring

import (
	"fmt"
	"math/bits"
	"strings"
)

// DefaultSectionTotal is the question count of a Listening or Reading section.
const DefaultSectionTotal = 40

// Section identifies one part of a test.
type Section string

const (
	SectionListening Section = "listening"
	SectionReading   Section = "reading"
	SectionWriting   Section = "writing"
	SectionSpeaking  Section = "speaking"
)

// ParseSection accepts "listening" or "reading", the sections scored by count.
func ParseSection(s string) (Section, error) {
	switch Section(strings.ToLower(strings.TrimSpace(s))) {
	case SectionListening:
		return SectionListening, nil
	case SectionReading:
		return SectionReading, nil
	}
	return "", fmt.Errorf("%w: unknown section %q", ErrInvalidInput, s)
}

// Mode selects how a raw score is placed on the band table.
type Mode string

const (
	// ModeRaw looks the raw correct count up directly.
	ModeRaw Mode = "raw"
	// ModeNormalized rescales the score to a 40-question equivalent first.
	ModeNormalized Mode = "normalized"
)

// ParseMode parses a mode name. Empty means ModeRaw.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeRaw:
		return ModeRaw, nil
	case ModeNormalized:
		return ModeNormalized, nil
	}
	return "", fmt.Errorf("%w: unknown scoring mode %q", ErrInvalidInput, s)
}

type threshold struct {
	minScore int
	halves   int
}

// Highest threshold first; scores out of 40.
var canonicalTable = []threshold{
	{39, 18},
	{37, 17},
	{35, 16},
	{33, 15},
	{30, 14},
	{27, 13},
	{23, 12},
	{19, 11},
	{15, 10},
	{13, 9},
	{10, 8},
}

// Listening and Reading share one table.
var sectionTables = map[Section][]threshold{
	SectionListening: canonicalTable,
	SectionReading:   canonicalTable,
}

// Converter maps raw section scores to bands. The zero value uses ModeRaw.
type Converter struct {
	Mode Mode
}

// NewConverter returns a Converter for the given mode.
func NewConverter(mode Mode) Converter {
	return Converter{Mode: mode}
}

// BandForListening converts a Listening score.
func (c Converter) BandForListening(score, total int) (Band, error) {
	return c.BandFor(SectionListening, score, total)
}

// BandForReading converts a Reading score.
func (c Converter) BandForReading(score, total int) (Band, error) {
	return c.BandFor(SectionReading, score, total)
}

// BandFor converts a score for any count-scored section.
func (c Converter) BandFor(section Section, score, total int) (Band, error) {
	table, ok := sectionTables[section]
	if !ok {
		return Band{}, fmt.Errorf("%w: section %q has no band table", ErrInvalidInput, section)
	}
	if total <= 0 {
		return Band{}, fmt.Errorf("%w: total must be positive, got %d", ErrInvalidInput, total)
	}
	if score < 0 || score > total {
		return Band{}, fmt.Errorf("%w: score %d outside 0..%d", ErrInvalidInput, score, total)
	}

	points := score
	switch c.Mode {
	case "", ModeRaw:
	case ModeNormalized:
		points = normalize(score, total)
	default:
		return Band{}, fmt.Errorf("%w: unknown scoring mode %q", ErrInvalidInput, c.Mode)
	}
	return lookup(table, points), nil
}

// normalize returns round_half_up(score * 40 / total). The numerator is
// computed in 128 bits so any 0 <= score <= total fits.
func normalize(score, total int) int {
	hi, lo := bits.Mul64(uint64(score), 2*DefaultSectionTotal)
	lo, carry := bits.Add64(lo, uint64(total), 0)
	hi += carry
	q, _ := bits.Div64(hi, lo, 2*uint64(total))
	return int(q)
}

func lookup(table []threshold, points int) Band {
	for _, t := range table {
		if points >= t.minScore {
			return bandFromHalves(t.halves)
		}
	}
	return BelowMinimum()
}

// BandForListening converts a Listening score using ModeRaw.
func BandForListening(score, total int) (Band, error) {
	return Converter{}.BandForListening(score, total)
}

// BandForReading converts a Reading score using ModeRaw.
func BandForReading(score, total int) (Band, error) {
	return Converter{}.BandForReading(score, total)
}
