package build

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshuakim/oddsalign/internal/aggregate"
	"github.com/joshuakim/oddsalign/internal/models"
	"github.com/joshuakim/oddsalign/internal/resolve"
)

// StatsSource provides schedules, rosters and recent form. A failure
// here is fatal for the build: there is no schedule to join against.
type StatsSource interface {
	Schedule(ctx context.Context, league models.League, date time.Time) ([]models.GameStub, error)
	Roster(ctx context.Context, league models.League, teamID string) ([]models.PlayerRef, error)
	RecentForm(ctx context.Context, league models.League, teamID string) (models.StatLine, error)
}

// OddsSource provides sportsbook quotes. A failure here degrades the
// build: records are still emitted with missing_odds set.
type OddsSource interface {
	Odds(ctx context.Context, league models.League) ([]models.OddsEvent, error)
	Props(ctx context.Context, league models.League, eventID string) ([]models.OddsQuote, error)
}

// Builder joins the stats and odds sources into normalized game records.
// It is stateless across invocations; every Build is a pure function of
// the two source snapshots plus the read-only alias table.
type Builder struct {
	stats    StatsSource
	odds     OddsSource
	resolver *resolve.Resolver
	log      *logrus.Logger
}

// New creates a builder with explicit dependencies
func New(stats StatsSource, odds OddsSource, resolver *resolve.Resolver, log *logrus.Logger) *Builder {
	return &Builder{
		stats:    stats,
		odds:     odds,
		resolver: resolver,
		log:      log,
	}
}

// Build produces one GameRecord per game scheduled for the league/date.
// teamFilter, when non-empty, keeps only games involving that team
// (matched against canonical name or abbreviation).
func (b *Builder) Build(ctx context.Context, league models.League, date time.Time, teamFilter string) (*models.BuildResult, error) {
	stubs, events, oddsErr, err := b.fetchSources(ctx, league, date)
	if err != nil {
		return nil, err
	}
	if oddsErr != nil {
		b.log.WithError(oddsErr).WithField("league", league).Warn("odds source unavailable, building schedule-only records")
	}

	if teamFilter != "" {
		stubs = filterStubs(stubs, teamFilter)
	}

	result := &models.BuildResult{
		League:      league,
		Date:        date.Format("2006-01-02"),
		GeneratedAt: time.Now().UTC(),
		Records:     []models.GameRecord{},
	}

	gaps := newGapSet(league)
	byPair := b.indexEvents(league, stubs, events, gaps)

	for _, stub := range sortStubs(stubs) {
		record := models.GameRecord{
			GameID:    stub.GameID,
			League:    league,
			StartTime: stub.StartTime,
			Home:      stub.Home,
			Away:      stub.Away,
			Markets:   []models.MarketBest{},
		}

		b.attachForm(ctx, &record)

		ev, matched := byPair[pairKey(stub.Home.SourceID, stub.Away.SourceID)]
		if oddsErr != nil || !matched {
			record.MissingOdds = true
		} else {
			record.Markets = aggregate.Reduce(canonicalSides(ev, record.Home, record.Away))
			b.attachProps(ctx, &record, ev, gaps)
		}

		record.Partial = record.Partial || len(record.Unresolved) > 0
		result.Records = append(result.Records, record)
	}

	result.Gaps = gaps.list()
	result.Status = buildStatus(result, oddsErr)
	return result, nil
}

// fetchSources runs the two outbound fetches concurrently. The stats
// error aborts; the odds error is carried back for degraded handling.
func (b *Builder) fetchSources(ctx context.Context, league models.League, date time.Time) ([]models.GameStub, []models.OddsEvent, error, error) {
	var (
		stubs    []models.GameStub
		events   []models.OddsEvent
		statsErr error
		oddsErr  error
	)

	done := make(chan struct{}, 2)
	go func() {
		stubs, statsErr = b.stats.Schedule(ctx, league, date)
		done <- struct{}{}
	}()
	go func() {
		events, oddsErr = b.odds.Odds(ctx, league)
		done <- struct{}{}
	}()
	<-done
	<-done

	if statsErr != nil {
		return nil, nil, nil, fmt.Errorf("stats source failed for %s: %w", league, statsErr)
	}
	if err := ctx.Err(); err != nil {
		// Cancellation short-circuits; half-built output has no value
		return nil, nil, nil, err
	}
	return stubs, events, oddsErr, nil
}

// indexEvents resolves each odds event's team names against the slate
// and indexes the event by its resolved (home, away) pair
func (b *Builder) indexEvents(league models.League, stubs []models.GameStub, events []models.OddsEvent, gaps *gapSet) map[string]models.OddsEvent {
	candidates := teamCandidates(stubs)
	byPair := make(map[string]models.OddsEvent, len(events))

	for _, ev := range events {
		home := b.resolver.ResolveTeam(league, ev.HomeName, candidates)
		away := b.resolver.ResolveTeam(league, ev.AwayName, candidates)

		for _, m := range []resolve.Match{home, away} {
			if !m.Resolved() {
				gaps.add("team", m)
			}
		}
		if !home.Resolved() || !away.Resolved() {
			continue
		}
		byPair[pairKey(home.ID, away.ID)] = ev
	}
	return byPair
}

// attachProps fetches and aggregates player props for one matched game,
// resolving prop names against the two rosters only
func (b *Builder) attachProps(ctx context.Context, record *models.GameRecord, ev models.OddsEvent, gaps *gapSet) {
	quotes, err := b.odds.Props(ctx, record.League, ev.EventID)
	if err != nil {
		b.log.WithError(err).WithField("game_id", record.GameID).Warn("prop fetch failed, continuing without props")
		return
	}
	if len(quotes) == 0 {
		return
	}

	roster, ok := b.gameRoster(ctx, record)
	if !ok {
		// Props without a roster cannot be resolved; keep the record usable
		record.Partial = true
		return
	}

	candidates := make([]resolve.Candidate, len(roster))
	byID := make(map[string]models.PlayerRef, len(roster))
	for i, p := range roster {
		candidates[i] = resolve.Candidate{ID: p.SourceID, Name: p.DisplayName}
		byID[p.SourceID] = p
	}

	byPlayer := make(map[string][]models.OddsQuote)
	unresolved := make(map[string]*models.UnresolvedProp)
	for _, q := range quotes {
		m := b.resolver.ResolvePlayer(record.League, q.PlayerName, candidates)
		if !m.Resolved() {
			u := unresolved[q.PlayerName]
			if u == nil {
				u = &models.UnresolvedProp{
					PlayerName:    q.PlayerName,
					BestCandidate: m.BestCandidate,
					BestScore:     m.BestScore,
				}
				unresolved[q.PlayerName] = u
				gaps.add("player", m)
			}
			u.Quotes++
			continue
		}
		byPlayer[m.ID] = append(byPlayer[m.ID], q)
	}

	if len(byPlayer) > 0 {
		record.PlayerProps = make(map[string]models.PlayerProps, len(byPlayer))
		for id, qs := range byPlayer {
			record.PlayerProps[id] = models.PlayerProps{
				Player: byID[id],
				Props:  aggregate.Reduce(qs),
			}
		}
	}

	for _, name := range sortedKeys(unresolved) {
		record.Unresolved = append(record.Unresolved, *unresolved[name])
	}
}

// gameRoster combines both teams' rosters for per-game player scoping
func (b *Builder) gameRoster(ctx context.Context, record *models.GameRecord) ([]models.PlayerRef, bool) {
	var roster []models.PlayerRef
	for _, team := range []models.TeamRef{record.Home, record.Away} {
		players, err := b.stats.Roster(ctx, record.League, team.SourceID)
		if err != nil {
			b.log.WithError(err).WithField("team", team.CanonicalName).Warn("roster fetch failed")
			return nil, false
		}
		roster = append(roster, players...)
	}
	return roster, true
}

// attachForm fetches recent form for both teams; a miss on either side
// is logged and omitted rather than failing the record
func (b *Builder) attachForm(ctx context.Context, record *models.GameRecord) {
	for _, team := range []models.TeamRef{record.Home, record.Away} {
		form, err := b.stats.RecentForm(ctx, record.League, team.SourceID)
		if err != nil {
			b.log.WithError(err).WithField("team", team.CanonicalName).Warn("recent form fetch failed")
			continue
		}
		if form == nil {
			continue
		}
		if record.RecentForm == nil {
			record.RecentForm = make(map[string]models.StatLine, 2)
		}
		record.RecentForm[team.SourceID] = form
	}
}

func buildStatus(result *models.BuildResult, oddsErr error) models.BuildStatus {
	if oddsErr != nil {
		return models.BuildDegraded
	}
	if len(result.Gaps) > 0 {
		return models.BuildPartial
	}
	for _, r := range result.Records {
		if r.Partial {
			return models.BuildPartial
		}
	}
	return models.BuildOK
}

func teamCandidates(stubs []models.GameStub) []resolve.Candidate {
	seen := make(map[string]bool, len(stubs)*2)
	var out []resolve.Candidate
	for _, s := range stubs {
		for _, t := range []models.TeamRef{s.Home, s.Away} {
			if seen[t.SourceID] {
				continue
			}
			seen[t.SourceID] = true
			out = append(out, resolve.Candidate{ID: t.SourceID, Name: t.CanonicalName})
		}
	}
	return out
}

func filterStubs(stubs []models.GameStub, teamFilter string) []models.GameStub {
	want := strings.ToLower(teamFilter)
	var out []models.GameStub
	for _, s := range stubs {
		for _, t := range []models.TeamRef{s.Home, s.Away} {
			if strings.ToLower(t.CanonicalName) == want || strings.ToLower(t.Abbreviation) == want {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// sortStubs orders games by start time then ID: the stats source's
// natural ordering, made stable for idempotent output
func sortStubs(stubs []models.GameStub) []models.GameStub {
	out := make([]models.GameStub, len(stubs))
	copy(out, stubs)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].GameID < out[j].GameID
	})
	return out
}

// canonicalSides rewrites team-named quote sides (moneyline, spreads) to
// the stats source's canonical names, so every emitted market side refers
// to one of the record's own team refs even when the odds feed spells the
// team differently. Over/Under sides pass through untouched.
func canonicalSides(ev models.OddsEvent, home, away models.TeamRef) []models.OddsQuote {
	if ev.HomeName == home.CanonicalName && ev.AwayName == away.CanonicalName {
		return ev.Quotes
	}
	out := make([]models.OddsQuote, len(ev.Quotes))
	copy(out, ev.Quotes)
	for i := range out {
		switch out[i].Side {
		case ev.HomeName:
			out[i].Side = home.CanonicalName
		case ev.AwayName:
			out[i].Side = away.CanonicalName
		}
	}
	return out
}

func pairKey(homeID, awayID string) string {
	return homeID + "|" + awayID
}

func sortedKeys(m map[string]*models.UnresolvedProp) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// gapSet accumulates unresolved names once per distinct input
type gapSet struct {
	league models.League
	seen   map[string]bool
	gaps   []models.UnresolvedName
}

func newGapSet(league models.League) *gapSet {
	return &gapSet{
		league: league,
		seen:   make(map[string]bool),
	}
}

func (g *gapSet) add(kind string, m resolve.Match) {
	key := kind + "|" + m.Input
	if g.seen[key] {
		return
	}
	g.seen[key] = true
	g.gaps = append(g.gaps, models.UnresolvedName{
		League:        g.league,
		Kind:          kind,
		Input:         m.Input,
		BestCandidate: m.BestCandidate,
		BestScore:     m.BestScore,
	})
}

func (g *gapSet) list() []models.UnresolvedName {
	return g.gaps
}
