package executor

import (
	"sync"

	"github.com/codeready-toolchain/medik/pkg/models"
)

// runStore owns the in-flight and finished playbook runs. All run state
// mutation goes through the store's lock; step execution itself happens
// outside it.
type runStore struct {
	mu   sync.RWMutex
	runs map[string]*models.PlaybookRun
}

func newRunStore() *runStore {
	return &runStore{runs: make(map[string]*models.PlaybookRun)}
}

func (s *runStore) put(run *models.PlaybookRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.RunID] = run
}

// update applies a mutation under the store lock.
func (s *runStore) update(runID string, fn func(*models.PlaybookRun)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return false
	}
	fn(run)
	return true
}

// snapshot returns a copy safe to hand to API readers.
func (s *runStore) snapshot(runID string) (models.PlaybookRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return models.PlaybookRun{}, false
	}
	copied := *run
	copied.StepOutputs = append([]string(nil), run.StepOutputs...)
	return copied, true
}
