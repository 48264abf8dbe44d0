package store

import (
	"sync"
	"time"

	"github.com/joshuakim/oddsalign/internal/models"
)

// Store holds the latest build result per league in memory
type Store struct {
	mu          sync.RWMutex
	results     map[models.League]*models.BuildResult
	lastUpdated map[models.League]time.Time
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		results:     make(map[models.League]*models.BuildResult),
		lastUpdated: make(map[models.League]time.Time),
	}
}

// Set replaces the stored result for a league
func (s *Store) Set(league models.League, result *models.BuildResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[league] = result
	s.lastUpdated[league] = time.Now()
}

// Get returns the latest result for a league
func (s *Store) Get(league models.League) (*models.BuildResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.results[league]
	return result, ok
}

// Record returns a single game record by ID, searching all leagues
func (s *Store) Record(gameID string) (models.GameRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, result := range s.results {
		for _, rec := range result.Records {
			if rec.GameID == gameID {
				return rec, true
			}
		}
	}
	return models.GameRecord{}, false
}

// Leagues returns the leagues that currently have a stored result
func (s *Store) Leagues() []models.League {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leagues := make([]models.League, 0, len(s.results))
	for league := range s.results {
		leagues = append(leagues, league)
	}
	return leagues
}

// LastUpdated returns when a league's result was last replaced
func (s *Store) LastUpdated(league models.League) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated[league]
}

// Clear removes all stored results
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[models.League]*models.BuildResult)
	s.lastUpdated = make(map[models.League]time.Time)
}
