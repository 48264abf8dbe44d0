package resolve

import "github.com/joshuakim/oddsalign/internal/models"

// DefaultThreshold is the minimum composite similarity for a fuzzy match
// to be accepted. Below it the resolver reports Unresolved instead of
// guessing. Tuned against alias-collision data; see DESIGN.md.
const DefaultThreshold = 0.85

// Status classifies how a match was made
type Status string

const (
	StatusExact      Status = "exact"
	StatusAlias      Status = "alias"
	StatusFuzzy      Status = "fuzzy"
	StatusUnresolved Status = "unresolved"
)

// Candidate is one canonical ref the resolver may match against.
// Callers scope the candidate set (one league, or one game's two rosters)
// before resolving; the resolver never searches globally.
type Candidate struct {
	ID   string
	Name string
}

// Match is the outcome of resolving one input name. When Status is
// StatusUnresolved, ID and Name are empty and BestCandidate/BestScore
// carry the nearest miss for reporting.
type Match struct {
	Input         string  `json:"input"`
	Status        Status  `json:"status"`
	ID            string  `json:"id,omitempty"`
	Name          string  `json:"name,omitempty"`
	Score         float64 `json:"score,omitempty"`
	BestCandidate string  `json:"best_candidate,omitempty"`
	BestScore     float64 `json:"best_score,omitempty"`
}

// Resolved reports whether the match can be used
func (m Match) Resolved() bool {
	return m.Status != StatusUnresolved
}

// Resolver maps noisy names from the odds feed onto canonical stats-side
// refs. The alias table is consulted before any fuzzy scoring because
// 2-3 letter abbreviations are unreliable under edit distance.
type Resolver struct {
	aliases   *AliasTable
	threshold float64
}

// NewResolver creates a resolver with the default confidence threshold
func NewResolver(aliases *AliasTable) *Resolver {
	return &Resolver{
		aliases:   aliases,
		threshold: DefaultThreshold,
	}
}

// SetThreshold overrides the fuzzy-match confidence threshold
func (r *Resolver) SetThreshold(t float64) {
	r.threshold = t
}

// ResolveTeam matches an odds-side team name against league-scoped candidates
func (r *Resolver) ResolveTeam(league models.League, input string, candidates []Candidate) Match {
	return r.resolve(input, candidates, func(s string) (string, bool) {
		return r.aliases.Team(league, s)
	})
}

// ResolvePlayer matches a prop player name against roster-scoped candidates
func (r *Resolver) ResolvePlayer(league models.League, input string, candidates []Candidate) Match {
	return r.resolve(input, candidates, func(s string) (string, bool) {
		return r.aliases.Player(league, s)
	})
}

func (r *Resolver) resolve(input string, candidates []Candidate, alias func(string) (string, bool)) Match {
	target := Normalize(input)
	status := StatusExact

	// Alias fast path: rewrite the input to its canonical form, then fall
	// through to matching so the canonical name must still exist in the
	// candidate set.
	if canonical, ok := alias(input); ok {
		target = Normalize(canonical)
		status = StatusAlias
	}

	for _, c := range candidates {
		if Normalize(c.Name) == target {
			return Match{
				Input:  input,
				Status: status,
				ID:     c.ID,
				Name:   c.Name,
				Score:  1.0,
			}
		}
	}

	// No exact hit: score every candidate and accept only high confidence
	best := Match{Input: input, Status: StatusUnresolved}
	var bestCand Candidate
	for _, c := range candidates {
		score := Similarity(target, Normalize(c.Name))
		if score > best.BestScore {
			best.BestScore = score
			best.BestCandidate = c.Name
			bestCand = c
		}
	}

	if best.BestScore >= r.threshold {
		return Match{
			Input:  input,
			Status: StatusFuzzy,
			ID:     bestCand.ID,
			Name:   bestCand.Name,
			Score:  best.BestScore,
		}
	}
	return best
}
