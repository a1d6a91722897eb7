package db

import (
	"sync"

	"github.com/ldi/telepathic/pkg/models"
)

// StagingManager holds extraction results awaiting review, keyed by session.
type StagingManager struct {
	mu     sync.RWMutex
	staged map[string]*models.ExtractionResult
}

func NewStagingManager() *StagingManager {
	return &StagingManager{
		staged: make(map[string]*models.ExtractionResult),
	}
}

// Stage merges an extraction into the session's pending result.
func (sm *StagingManager) Stage(sessionID string, result *models.ExtractionResult) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.staged[sessionID] == nil {
		sm.staged[sessionID] = &models.ExtractionResult{}
	}
	pending := sm.staged[sessionID]
	pending.Projects = append(pending.Projects, result.Projects...)
	pending.StandaloneTasks = append(pending.StandaloneTasks, result.StandaloneTasks...)
}

func (sm *StagingManager) GetAndClear(sessionID string) *models.ExtractionResult {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	items, ok := sm.staged[sessionID]
	if !ok {
		return &models.ExtractionResult{}
	}

	delete(sm.staged, sessionID)
	return items
}

func (sm *StagingManager) Peek(sessionID string) *models.ExtractionResult {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	items, ok := sm.staged[sessionID]
	if !ok {
		return &models.ExtractionResult{}
	}

	return items
}

// Discard drops a session without saving anything.
func (sm *StagingManager) Discard(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.staged, sessionID)
}
