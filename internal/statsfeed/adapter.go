package statsfeed

import "github.com/joshuakim/oddsalign/internal/models"

// parseScoreboard maps raw scoreboard events into game stubs. Events
// without two competitors or a parseable date are counted as skipped,
// never aborting the batch.
func parseScoreboard(resp scoreboardResponse, league models.League) ([]models.GameStub, int) {
	var stubs []models.GameStub
	skipped := 0

	for _, ev := range resp.Events {
		if len(ev.Competitions) == 0 {
			skipped++
			continue
		}
		comp := ev.Competitions[0]
		if len(comp.Competitors) < 2 {
			skipped++
			continue
		}

		home, away, ok := orientCompetitors(comp.Competitors)
		if !ok {
			skipped++
			continue
		}

		dateRaw := comp.Date
		if dateRaw == "" {
			dateRaw = ev.Date
		}
		start, ok := eventTime(dateRaw)
		if !ok {
			skipped++
			continue
		}

		stubs = append(stubs, models.GameStub{
			GameID:    ev.ID,
			League:    league,
			StartTime: start,
			Home:      teamRef(home.Team, league),
			Away:      teamRef(away.Team, league),
			State:     comp.Status.Type.State,
		})
	}
	return stubs, skipped
}

// orientCompetitors identifies which competitor is home. ESPN usually
// lists home first but the homeAway field is authoritative.
func orientCompetitors(competitors []competitor) (home, away competitor, ok bool) {
	for _, c := range competitors[:2] {
		switch c.HomeAway {
		case "home":
			home, ok = c, true
		case "away":
			away = c
		}
	}
	if !ok || away.Team.ID == "" || home.Team.ID == "" {
		return competitor{}, competitor{}, false
	}
	return home, away, true
}

func teamRef(t team, league models.League) models.TeamRef {
	return models.TeamRef{
		SourceID:      t.ID,
		CanonicalName: t.DisplayName,
		Abbreviation:  t.Abbreviation,
		League:        league,
	}
}

// parseRoster flattens both roster encodings into player refs
func parseRoster(resp rosterResponse, teamID string) []models.PlayerRef {
	var players []models.PlayerRef
	for _, node := range resp.Athletes {
		if len(node.Items) > 0 {
			// Position-group encoding: athletes live one level down
			for _, item := range node.Items {
				if p, ok := playerRef(item, teamID); ok {
					players = append(players, p)
				}
			}
			continue
		}
		if p, ok := playerRef(node, teamID); ok {
			players = append(players, p)
		}
	}
	return players
}

func playerRef(node rosterNode, teamID string) (models.PlayerRef, bool) {
	if node.ID == "" || node.FullName == "" {
		return models.PlayerRef{}, false
	}
	return models.PlayerRef{
		SourceID:    node.ID,
		DisplayName: node.FullName,
		TeamID:      teamID,
		Position:    node.positionAbbr(),
	}, true
}

// reduceForm averages the team's last completed games into a stat blob
func reduceForm(resp scheduleResponse, teamID string) models.StatLine {
	type gameLine struct {
		scored, allowed float64
		won             bool
	}
	var lines []gameLine

	for _, ev := range resp.Events {
		if len(ev.Competitions) == 0 {
			continue
		}
		comp := ev.Competitions[0]
		if !comp.Status.Type.Completed || len(comp.Competitors) < 2 {
			continue
		}

		var us, them *competitor
		for i := range comp.Competitors {
			c := &comp.Competitors[i]
			if c.Team.ID == teamID {
				us = c
			} else {
				them = c
			}
		}
		if us == nil || them == nil || !us.Score.ok || !them.Score.ok {
			continue
		}
		lines = append(lines, gameLine{
			scored:  us.Score.value,
			allowed: them.Score.value,
			won:     us.Winner,
		})
	}

	if len(lines) == 0 {
		return nil
	}
	// Keep only the most recent window; schedules list oldest first
	if len(lines) > formGames {
		lines = lines[len(lines)-formGames:]
	}

	var scored, allowed, wins float64
	for _, l := range lines {
		scored += l.scored
		allowed += l.allowed
		if l.won {
			wins++
		}
	}
	n := float64(len(lines))
	return models.StatLine{
		"games":          n,
		"wins":           wins,
		"losses":         n - wins,
		"points_for":     scored / n,
		"points_against": allowed / n,
		"margin":         (scored - allowed) / n,
	}
}
