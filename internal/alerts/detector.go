package alerts

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/joshuakim/oddsalign/internal/database"
	"github.com/joshuakim/oddsalign/internal/models"
)

// Detector flags posted game lines that disagree with recent form
type Detector struct {
	db         *database.DB
	thresholds Thresholds
	log        *logrus.Logger
}

// NewDetector creates a new alert detector
func NewDetector(db *database.DB, log *logrus.Logger) *Detector {
	return &Detector{
		db:         db,
		thresholds: DefaultThresholds(),
		log:        log,
	}
}

// UpdateThresholds updates the detection thresholds
func (d *Detector) UpdateThresholds(t Thresholds) {
	d.thresholds = t
}

// expectation derives expected total and home margin from the two
// teams' recent form. Returns false when either side has no form.
func expectation(record models.GameRecord) (total, homeMargin float64, ok bool) {
	homeForm := record.RecentForm[record.Home.SourceID]
	awayForm := record.RecentForm[record.Away.SourceID]
	if homeForm == nil || awayForm == nil {
		return 0, 0, false
	}

	total = homeForm["points_for"] + awayForm["points_for"]
	// Each team's average margin already nets out its opponents, so the
	// head-to-head expectation is half the difference
	homeMargin = (homeForm["margin"] - awayForm["margin"]) / 2
	return total, homeMargin, true
}

// CheckRecord inspects one game record and returns any value alerts
func (d *Detector) CheckRecord(record models.GameRecord) []ValueAlert {
	if record.MissingOdds {
		return nil
	}
	expTotal, expMargin, ok := expectation(record)
	if !ok {
		return nil
	}

	var alerts []ValueAlert
	for _, mb := range record.Markets {
		if mb.Line == nil {
			continue
		}

		var alert *ValueAlert
		switch mb.Market {
		case models.MarketTotal:
			if mb.Side != "Over" {
				continue
			}
			alert = d.checkTotal(record, mb, expTotal)
		case models.MarketSpread:
			if mb.Side != record.Home.CanonicalName {
				continue
			}
			alert = d.checkSpread(record, mb, expMargin)
		default:
			continue
		}
		if alert == nil {
			continue
		}

		shouldNotify, reason := d.ShouldNotify(alert)
		if !shouldNotify {
			d.log.WithFields(logrus.Fields{
				"game_id": record.GameID,
				"market":  alert.Market,
				"reason":  reason,
			}).Debug("skipping alert")
			continue
		}

		d.log.WithFields(logrus.Fields{
			"game_id":    record.GameID,
			"market":     alert.Market,
			"line":       alert.Line,
			"expected":   alert.Expected,
			"direction":  alert.Direction,
			"confidence": alert.Confidence,
		}).Info("value detected")

		if err := d.RecordAlert(alert); err != nil {
			d.log.WithError(err).Error("failed to record alert")
		}
		alerts = append(alerts, *alert)
	}
	return alerts
}

func (d *Detector) checkTotal(record models.GameRecord, mb models.MarketBest, expected float64) *ValueAlert {
	threshold := d.thresholds.GetThreshold(string(models.MarketTotal))
	diff := *mb.Line - expected
	absDiff := math.Abs(diff)
	if absDiff < threshold {
		return nil
	}

	// Line above the form-implied total puts the value on the under
	direction := DirectionOver
	if diff > 0 {
		direction = DirectionUnder
	}
	return d.newAlert(record, mb, expected, diff, direction, threshold)
}

func (d *Detector) checkSpread(record models.GameRecord, mb models.MarketBest, expMargin float64) *ValueAlert {
	threshold := d.thresholds.GetThreshold(string(models.MarketSpread))
	// A home spread of -7 means the books expect home to win by 7
	expectedLine := -expMargin
	diff := *mb.Line - expectedLine
	absDiff := math.Abs(diff)
	if absDiff < threshold {
		return nil
	}

	// Home getting more points than form implies puts the value on home
	direction := DirectionAway
	if diff > 0 {
		direction = DirectionHome
	}
	return d.newAlert(record, mb, expectedLine, diff, direction, threshold)
}

func (d *Detector) newAlert(record models.GameRecord, mb models.MarketBest, expected, diff float64, direction string, threshold float64) *ValueAlert {
	return &ValueAlert{
		ID:            uuid.New().String(),
		League:        string(record.League),
		GameID:        record.GameID,
		GameTime:      record.StartTime.Format(time.RFC3339),
		HomeTeam:      record.Home.CanonicalName,
		AwayTeam:      record.Away.CanonicalName,
		Market:        string(mb.Market),
		Side:          mb.Side,
		Line:          *mb.Line,
		Expected:      expected,
		Difference:    diff,
		AbsDifference: math.Abs(diff),
		Direction:     direction,
		Confidence:    GetConfidence(math.Abs(diff), threshold),
		BestPrice:     mb.BestPrice,
		Bookmaker:     mb.BestBook,
		DetectedAt:    time.Now(),
		ExpiresAt:     record.StartTime,
	}
}

// ShouldNotify checks if an alert should trigger a notification
// considering deduplication and cooldown
func (d *Detector) ShouldNotify(alert *ValueAlert) (bool, string) {
	if d.db == nil {
		return true, "no database configured"
	}

	history, err := d.db.GetAlertHistory(alert.GameID, alert.Market, alert.Side)
	if err != nil {
		d.log.WithError(err).Error("failed to check alert history")
		return true, "error checking history"
	}

	// Never alerted before
	if history == nil {
		return true, "new alert"
	}

	// Check if still in cooldown
	if time.Now().Before(history.CooldownUntil) {
		// Only re-alert if the line moved significantly (>0.5 units)
		lineDiff := math.Abs(alert.Line - history.LineValue)
		if lineDiff < 0.5 {
			return false, fmt.Sprintf("in cooldown until %s", history.CooldownUntil.Format("15:04"))
		}
		return true, fmt.Sprintf("line moved %.1f units", lineDiff)
	}

	return true, "cooldown expired"
}

// RecordAlert saves an alert to history
func (d *Detector) RecordAlert(alert *ValueAlert) error {
	if d.db == nil {
		return nil
	}

	cooldownDuration := GetCooldownDuration(alert.Confidence)

	history := &database.AlertHistory{
		GameID:        alert.GameID,
		Market:        alert.Market,
		Side:          alert.Side,
		LineValue:     alert.Line,
		ExpectedValue: alert.Expected,
		Difference:    alert.Difference,
		Confidence:    alert.Confidence,
		CooldownUntil: time.Now().Add(cooldownDuration),
	}

	return d.db.SaveAlertHistory(history)
}

// CheckResult processes a whole build result and returns all value alerts
func (d *Detector) CheckResult(result *models.BuildResult) []ValueAlert {
	var alerts []ValueAlert
	for _, record := range result.Records {
		alerts = append(alerts, d.CheckRecord(record)...)
	}
	return alerts
}

// FormatAlertMessage creates a human-readable alert message
func FormatAlertMessage(alert *ValueAlert) string {
	return fmt.Sprintf("%s @ %s: %s %s %.1f (expected %.1f, value on %s)",
		alert.AwayTeam,
		alert.HomeTeam,
		alert.Market,
		alert.Side,
		alert.Line,
		alert.Expected,
		alert.Direction,
	)
}

// FormatBatchSummary creates a summary for a batch of alerts
func FormatBatchSummary(alerts []ValueAlert) string {
	if len(alerts) == 0 {
		return "No value alerts"
	}

	if len(alerts) == 1 {
		return FormatAlertMessage(&alerts[0])
	}

	// Count by confidence
	high := 0
	for _, a := range alerts {
		if a.Confidence == ConfidenceHigh {
			high++
		}
	}

	summary := fmt.Sprintf("%d value alerts", len(alerts))
	if high > 0 {
		summary += fmt.Sprintf(" (%d high confidence)", high)
	}

	return summary
}
