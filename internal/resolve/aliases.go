package resolve

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joshuakim/oddsalign/internal/models"
)

// AliasTable maps known name variants to canonical names, per league.
// It is maintained by hand from observed mismatches, so the on-disk
// format is plain YAML:
//
//	leagues:
//	  nba:
//	    teams:
//	      Los Angeles Lakers: [LAL, LA Lakers, Lakers]
//	    players:
//	      Nikola Jokic: [N. Jokic]
type AliasTable struct {
	// alias (normalized) -> canonical name, partitioned by league and kind
	teams   map[models.League]map[string]string
	players map[models.League]map[string]string
}

type aliasFile struct {
	Leagues map[string]struct {
		Teams   map[string][]string `yaml:"teams"`
		Players map[string][]string `yaml:"players"`
	} `yaml:"leagues"`
}

// LoadAliasTable reads and indexes an alias YAML file. A missing file is
// not an error: the resolver just runs without a fast path.
func LoadAliasTable(path string) (*AliasTable, error) {
	t := &AliasTable{
		teams:   make(map[models.League]map[string]string),
		players: make(map[models.League]map[string]string),
	}
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("failed to read alias table: %w", err)
	}

	var file aliasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse alias table: %w", err)
	}

	for leagueStr, entry := range file.Leagues {
		league, err := models.ParseLeague(leagueStr)
		if err != nil {
			return nil, fmt.Errorf("alias table: %w", err)
		}
		t.teams[league] = indexAliases(entry.Teams)
		t.players[league] = indexAliases(entry.Players)
	}
	return t, nil
}

// indexAliases flattens canonical -> variants into normalized variant -> canonical.
// Canonical names also map to themselves so an alias-table hit never loses
// to its own variant list.
func indexAliases(entries map[string][]string) map[string]string {
	idx := make(map[string]string)
	for canonical, variants := range entries {
		idx[Normalize(canonical)] = canonical
		for _, v := range variants {
			idx[Normalize(v)] = canonical
		}
	}
	return idx
}

// Team returns the canonical team name for an alias, if one is registered
func (t *AliasTable) Team(league models.League, input string) (string, bool) {
	canonical, ok := t.teams[league][Normalize(input)]
	return canonical, ok
}

// Player returns the canonical player name for an alias, if one is registered
func (t *AliasTable) Player(league models.League, input string) (string, bool) {
	canonical, ok := t.players[league][Normalize(input)]
	return canonical, ok
}
