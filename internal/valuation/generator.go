// Package valuation produces the pseudo-random handle reports shown to
// users and caches them per normalized handle.
package valuation

import (
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	Categories = []string{
		"Premium Real Word", "Crypto Native", "Corporate Brand",
		"Luxury Personal", "Web3 Identity", "Short & Concise",
		"Tech Startup", "Global Asset", "Visual Symmetric", "Investment Grade",
	}
	Rarities = []string{
		"High", "Very High", "Ultra Rare", "Exclusive",
		"Collector's Item", "Legendary", "Blue Chip", "Top Tier",
	}
	Demands = []string{
		"Strong", "Very High", "Aggressive", "Trending Up",
		"Peak Interest", "Institutional", "Hot Market",
	}
	Brandings = []string{
		"Excellent", "Global", "Elite", "Unicorn Status",
		"International", "Corporate Grade", "Iconic",
	}
)

const (
	scoreMin     = 8.2
	scoreMax     = 9.9
	lowMin       = 1100
	lowMax       = 3500
	spreadMin    = 500
	spreadMax    = 1500
	highCeiling  = 4500
	highFallback = 4200
)

var handlePattern = regexp.MustCompile(`^@?[a-zA-Z][a-zA-Z0-9_]{3,31}$`)

// ValidHandle reports whether h looks like a public Telegram username.
func ValidHandle(h string) bool { return handlePattern.MatchString(h) }

// NormalizeHandle is the cache key: trimmed, without @, lowercase.
func NormalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}

type Report struct {
	Handle    string // display form, "@" + handle as typed
	Structure string
	Category  string
	Rarity    string
	Demand    string
	Score     float64
	Branding  string
	PriceLow  int
	PriceHigh int
}

// PriceRange is the display string stored with a valuation.
func (r Report) PriceRange() string { return fmt.Sprintf("$%d – $%d", r.PriceLow, r.PriceHigh) }

// ScoreText renders the score with one decimal.
func (r Report) ScoreText() string { return fmt.Sprintf("%.1f", r.Score) }

// Rand is the randomness a Generator draws from.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type Generator struct {
	rnd Rand
}

// NewGenerator uses rnd, or the package-level source when nil.
func NewGenerator(rnd Rand) *Generator {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &Generator{rnd: rnd}
}

type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

// Generate draws a fresh report for handle. Nothing about the handle other
// than its length influences the result.
func (g *Generator) Generate(handle string) Report {
	clean := strings.TrimPrefix(strings.TrimSpace(handle), "@")

	low := roundTen(g.between(lowMin, lowMax))
	high := low + g.between(spreadMin, spreadMax)
	if high > highCeiling {
		high = highFallback
	}
	score := scoreMin + g.rnd.Float64()*(scoreMax-scoreMin)

	return Report{
		Handle:    "@" + clean,
		Structure: fmt.Sprintf("%d characters", utf8.RuneCountInString(clean)),
		Category:  g.pick(Categories),
		Rarity:    g.pick(Rarities),
		Demand:    g.pick(Demands),
		Score:     math.Round(score*10) / 10,
		Branding:  g.pick(Brandings),
		PriceLow:  low,
		PriceHigh: high,
	}
}

// between is inclusive on both ends.
func (g *Generator) between(lo, hi int) int { return lo + g.rnd.IntN(hi-lo+1) }

func (g *Generator) pick(xs []string) string { return xs[g.rnd.IntN(len(xs))] }

// roundTen rounds to the nearest multiple of ten, halves to even.
func roundTen(n int) int {
	q, r := n/10, n%10
	if r > 5 || (r == 5 && q%2 == 1) {
		q++
	}
	return q * 10
}
