package location

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ldi/telepathic/internal/logging"
)

// DefaultThresholdMeters applies when a caller passes a threshold <= 0.
const DefaultThresholdMeters = 100.0

// Service answers proximity questions against the user's current location.
// Its answers are plain sentences because they are read by a language model.
type Service struct {
	mu      sync.RWMutex
	current *Coordinates
	finder  PlaceFinder
}

func NewService(finder PlaceFinder) *Service {
	return &Service{finder: finder}
}

func (s *Service) SetCurrentLocation(c Coordinates) {
	s.mu.Lock()
	s.current = &c
	s.mu.Unlock()
	logging.Debug("location", "Current location updated to %s", c)
}

// CurrentLocation returns the last known location, if any.
func (s *Service) CurrentLocation() (Coordinates, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Coordinates{}, false
	}
	return *s.current, true
}

func (s *Service) ClearCurrentLocation() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// IsNearby reports whether the user is within thresholdMeters of pointOfInterest.
func (s *Service) IsNearby(ctx context.Context, pointOfInterest string, thresholdMeters float64) string {
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultThresholdMeters
	}

	origin, ok := s.CurrentLocation()
	if !ok {
		logging.Warn("location", "Cannot check if nearby: no current location set")
		return "false - No current location is set"
	}

	if strings.TrimSpace(pointOfInterest) == "" {
		logging.Warn("location", "Cannot check if nearby: point of interest is empty")
		return "false - Point of interest cannot be empty"
	}

	if s.finder == nil {
		return fmt.Sprintf("false - Error calculating distance to %s: %v", pointOfInterest, ErrMissingAPIKey)
	}

	target, err := s.finder.Search(ctx, origin, pointOfInterest)
	if err != nil {
		logging.Warn("location", "Lookup for %q failed: %v", pointOfInterest, err)
		return fmt.Sprintf("false - Error calculating distance to %s: %v", pointOfInterest, err)
	}
	if target == nil {
		logging.Warn("location", "Could not find coordinates for point of interest: %s", pointOfInterest)
		return fmt.Sprintf("false - Could not find coordinates for %s", pointOfInterest)
	}

	distance := Distance(origin, *target)
	nearby := distance <= thresholdMeters
	logging.Info("location", "Near %s: distance %.2fm, threshold %sm, result %v",
		pointOfInterest, distance, formatThreshold(thresholdMeters), nearby)

	if nearby {
		return fmt.Sprintf("true - You are %.2fm away from %s", distance, pointOfInterest)
	}
	return fmt.Sprintf("false - You are %.2fm away from %s (threshold: %sm)", distance, pointOfInterest, formatThreshold(thresholdMeters))
}

func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
