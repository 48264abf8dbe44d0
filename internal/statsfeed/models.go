package statsfeed

import (
	"encoding/json"
	"time"
)

// Raw wire shapes from the ESPN site API. Kept package-private to this
// layer; the adapter maps them into models types.

type scoreboardResponse struct {
	Events []scoreboardEvent `json:"events"`
}

type scoreboardEvent struct {
	ID           string        `json:"id"`
	Date         string        `json:"date"`
	Name         string        `json:"name"`
	Competitions []competition `json:"competitions"`
}

type competition struct {
	ID          string       `json:"id"`
	Date        string       `json:"date"`
	Competitors []competitor `json:"competitors"`
	Status      status       `json:"status"`
}

type competitor struct {
	ID       string    `json:"id"`
	HomeAway string    `json:"homeAway"`
	Winner   bool      `json:"winner"`
	Team     team      `json:"team"`
	Score    scoreNode `json:"score"`
}

type team struct {
	ID           string `json:"id"`
	Location     string `json:"location"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	DisplayName  string `json:"displayName"`
}

type status struct {
	Type statusType `json:"type"`
}

type statusType struct {
	State     string `json:"state"` // pre/in/post
	Completed bool   `json:"completed"`
}

// scoreNode absorbs both score encodings ESPN uses: a bare string on the
// scoreboard ("102") and an object on team schedules ({"value": 102.0}).
type scoreNode struct {
	value float64
	ok    bool
}

func (s *scoreNode) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		var f float64
		if err := json.Unmarshal([]byte(str), &f); err == nil {
			s.value, s.ok = f, true
		}
		return nil
	}
	var obj struct {
		Value float64 `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		s.value, s.ok = obj.Value, true
	}
	// Unparseable scores are treated as absent, not fatal
	return nil
}

type scheduleResponse struct {
	Events []scoreboardEvent `json:"events"`
}

type rosterResponse struct {
	Athletes []rosterNode `json:"athletes"`
}

// rosterNode covers both roster encodings: a flat athlete list (NBA) and
// position groups with nested items (NFL).
type rosterNode struct {
	ID       string          `json:"id"`
	FullName string          `json:"fullName"`
	Position json.RawMessage `json:"position"`
	Items    []rosterNode    `json:"items"`
}

// positionAbbr extracts the position abbreviation when Position is an
// object; group nodes carry a plain string there and yield ""
func (n rosterNode) positionAbbr() string {
	var obj struct {
		Abbreviation string `json:"abbreviation"`
	}
	if err := json.Unmarshal(n.Position, &obj); err != nil {
		return ""
	}
	return obj.Abbreviation
}

// eventTime parses ESPN's timestamp, which sometimes omits seconds
func eventTime(raw string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
