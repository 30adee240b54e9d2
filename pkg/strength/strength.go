// Package strength estimates the entropy of candidate secrets and how long an
// exhaustive search would take against them, classically and with a
// quadratic (Grover-style) speedup.
//
// The model is deliberately coarse: a candidate is assumed to be drawn
// uniformly from the union of the character classes it uses.
//
//	charset = 26·[lower] + 26·[upper] + 10·[digit] + 32·[symbol]
//	bits    = len(candidate) · log2(charset)
//
// All functions are pure and safe for concurrent use.
package strength

import (
	"fmt"
	"math"
	"unicode"

	"github.com/pzverkov/quantum-vault/internal/constants"
)

// Rating is a coarse verdict on a candidate's entropy.
type Rating string

// Ratings, weakest first.
const (
	RatingWeak      Rating = "weak"
	RatingFair      Rating = "fair"
	RatingStrong    Rating = "strong"
	RatingExcellent Rating = "excellent"
)

// Rating thresholds in bits.
const (
	FairBits      = 40
	StrongBits    = 60
	ExcellentBits = 80
)

// Score bundles every estimate for one candidate.
type Score struct {
	EntropyBits      float64 `json:"entropy_bits"`
	ClassicalSeconds float64 `json:"classical_sec"`
	QuantumSeconds   float64 `json:"quantum_sec"`
	Rating           Rating  `json:"rating"`
	ClassicalHuman   string  `json:"classical_human"`
	QuantumHuman     string  `json:"quantum_human"`
}

// CharsetSize returns the size of the union of character classes present in
// s, or 0 if s is empty or uses no recognized class. Only ASCII letters count
// toward the lower and upper classes; other letters belong to no class.
func CharsetSize(s string) int {
	var lower, upper, digit, symbol bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			lower = true
		case 'A' <= r && r <= 'Z':
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			symbol = true
		}
	}

	n := 0
	if lower {
		n += constants.CharsetLower
	}
	if upper {
		n += constants.CharsetUpper
	}
	if digit {
		n += constants.CharsetDigit
	}
	if symbol {
		n += constants.CharsetSymbol
	}
	return n
}

// EntropyBits returns log2(charset^length) for s. It never fails: an empty
// or unrecognizable candidate scores 0.
func EntropyBits(s string) float64 {
	charset := CharsetSize(s)
	if charset == 0 {
		return 0
	}
	// len·log2(c) == log2(c^len) without overflowing for long inputs.
	return float64(len([]rune(s))) * math.Log2(float64(charset))
}

// EstimateCrackTime returns the expected exhaustive-search time in seconds
// for a secret of the given entropy at constants.GuessesPerSecond. The
// quantum estimate halves the effective bits, floored at zero.
func EstimateCrackTime(bits float64) (classical, quantum float64) {
	classical = math.Exp2(bits) / constants.GuessesPerSecond
	quantum = math.Exp2(math.Max(0, bits/2)) / constants.GuessesPerSecond
	return classical, quantum
}

// RatingFor maps an entropy to a Rating.
func RatingFor(bits float64) Rating {
	switch {
	case bits >= ExcellentBits:
		return RatingExcellent
	case bits >= StrongBits:
		return RatingStrong
	case bits >= FairBits:
		return RatingFair
	default:
		return RatingWeak
	}
}

// Evaluate scores s.
func Evaluate(s string) Score {
	bits := EntropyBits(s)
	classical, quantum := EstimateCrackTime(bits)
	return Score{
		EntropyBits:      bits,
		ClassicalSeconds: classical,
		QuantumSeconds:   quantum,
		Rating:           RatingFor(bits),
		ClassicalHuman:   HumanDuration(classical),
		QuantumHuman:     HumanDuration(quantum),
	}
}

const (
	minute   = 60.0
	hour     = 60 * minute
	day      = 24 * hour
	year     = 365.25 * day
	century  = 100 * year
	universe = 1.38e10 * year
)

// HumanDuration renders seconds as a short approximate string such as
// "instant", "3 hours" or "2.4e+12 centuries".
func HumanDuration(seconds float64) string {
	switch {
	case math.IsNaN(seconds) || seconds < 0:
		return "unknown"
	case math.IsInf(seconds, 1) || seconds >= universe:
		return "longer than the age of the universe"
	case seconds < 1:
		return "instant"
	case seconds < minute:
		return plural(seconds, "second")
	case seconds < hour:
		return plural(seconds/minute, "minute")
	case seconds < day:
		return plural(seconds/hour, "hour")
	case seconds < year:
		return plural(seconds/day, "day")
	case seconds < century:
		return plural(seconds/year, "year")
	default:
		c := seconds / century
		if c >= 1e6 {
			return fmt.Sprintf("%.1e centuries", c)
		}
		return plural(c, "century")
	}
}

func plural(v float64, unit string) string {
	n := math.Floor(v + 1e-9)
	if n == 1 {
		return "1 " + unit
	}
	if unit == "century" {
		return fmt.Sprintf("%.0f centuries", n)
	}
	return fmt.Sprintf("%.0f %ss", n, unit)
}
