package aggregate

import (
	"sort"

	"github.com/joshuakim/oddsalign/internal/models"
)

// bucketKey identifies one reducible group of quotes. Line is folded into
// the key so a 7.5 spread and a 8.5 spread stay separate buckets.
type bucketKey struct {
	market  models.Market
	propKey string
	player  string
	side    string
	line    float64
	hasLine bool
}

// Reduce collapses N sportsbook quotes into the single best-priced line
// per (market, side, line) bucket. It is a pure reduction: the same quote
// set produces the same output regardless of input order. Buckets with no
// quotes simply do not appear; callers mark availability, not this layer.
func Reduce(quotes []models.OddsQuote) []models.MarketBest {
	buckets := make(map[bucketKey]models.MarketBest)

	for _, q := range quotes {
		if q.Price == 0 {
			// Zero is not a valid American price; treat as malformed and skip
			continue
		}
		key := keyFor(q)
		best, ok := buckets[key]
		if !ok || better(q, best) {
			buckets[key] = models.MarketBest{
				Market:    q.Market,
				PropKey:   q.PropKey,
				Side:      q.Side,
				Line:      q.Line,
				BestPrice: q.Price,
				BestBook:  q.Book,
			}
		}
	}

	out := make([]models.MarketBest, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b)
	}
	sortBests(out)
	return out
}

func keyFor(q models.OddsQuote) bucketKey {
	key := bucketKey{
		market:  q.Market,
		propKey: q.PropKey,
		player:  q.PlayerName,
		side:    q.Side,
	}
	if q.Line != nil {
		key.line = *q.Line
		key.hasLine = true
	}
	return key
}

// better reports whether quote q beats the current best for its bucket.
// Bettor-favorable American odds order: any positive price beats any
// negative one; among positives the maximum wins; among negatives the
// value closest to zero wins. That ordering is exactly numeric max, so
// the comparison reduces to an integer compare with an alphabetical
// book-name tie-break for determinism.
func better(q models.OddsQuote, best models.MarketBest) bool {
	if q.Price != best.BestPrice {
		return q.Price > best.BestPrice
	}
	return q.Book < best.BestBook
}

// sortBests orders output deterministically: market, prop key, side, line
func sortBests(bests []models.MarketBest) {
	sort.Slice(bests, func(i, j int) bool {
		a, b := bests[i], bests[j]
		if a.Market != b.Market {
			return a.Market < b.Market
		}
		if a.PropKey != b.PropKey {
			return a.PropKey < b.PropKey
		}
		if a.Side != b.Side {
			return a.Side < b.Side
		}
		if lineOf(a) != lineOf(b) {
			return lineOf(a) < lineOf(b)
		}
		// Mixed-player prop input can yield buckets identical in every
		// sort field above; fall back to price/book so output order is
		// still a pure function of the input set.
		if a.BestPrice != b.BestPrice {
			return a.BestPrice > b.BestPrice
		}
		return a.BestBook < b.BestBook
	})
}

func lineOf(b models.MarketBest) float64 {
	if b.Line == nil {
		return 0
	}
	return *b.Line
}
