// Package playbook holds the immutable catalogue of remediation playbooks
// and the parameter template resolution used when steps execute.
package playbook

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/codeready-toolchain/medik/pkg/models"
)

// Summary is the list view of a registered playbook.
type Summary struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Steps            int    `json:"steps"`
	RequiresApproval bool   `json:"requires_approval"`
}

// Registry is the catalogue of available remediation playbooks.
// Playbooks are immutable once registered.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	playbooks map[string]models.Playbook
	logger    *slog.Logger
}

// NewRegistry creates a registry pre-loaded with the builtin playbooks.
func NewRegistry() *Registry {
	r := &Registry{
		playbooks: make(map[string]models.Playbook),
		logger:    slog.Default().With("component", "playbook-registry"),
	}
	for _, pb := range builtinPlaybooks() {
		// Builtin definitions are well-formed; a registration failure here
		// is a programming error.
		if err := r.Register(pb); err != nil {
			panic(fmt.Sprintf("builtin playbook %q: %v", pb.ID, err))
		}
	}
	return r
}

// Register adds a playbook to the catalogue. Playbooks must have an id and
// at least one step; re-registering an existing id is rejected.
func (r *Registry) Register(pb models.Playbook) error {
	if pb.ID == "" {
		return fmt.Errorf("playbook id is required")
	}
	if len(pb.Steps) == 0 {
		return fmt.Errorf("playbook %q has no steps", pb.ID)
	}
	for _, step := range pb.Steps {
		if !step.Risk.IsValid() {
			return fmt.Errorf("playbook %q step %q has invalid risk level %q", pb.ID, step.Name, step.Risk)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.playbooks[pb.ID]; exists {
		return fmt.Errorf("playbook %q already registered", pb.ID)
	}
	r.playbooks[pb.ID] = pb
	r.order = append(r.order, pb.ID)
	r.logger.Debug("Playbook registered", "playbook_id", pb.ID, "name", pb.Name, "steps", len(pb.Steps))
	return nil
}

// Get returns the playbook with the given id.
func (r *Registry) Get(id string) (models.Playbook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pb, ok := r.playbooks[id]
	return pb, ok
}

// List returns summaries of all registered playbooks in registration order.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	summaries := make([]Summary, 0, len(r.order))
	for _, id := range r.order {
		pb := r.playbooks[id]
		summaries = append(summaries, Summary{
			ID:               pb.ID,
			Name:             pb.Name,
			Description:      pb.Description,
			Steps:            len(pb.Steps),
			RequiresApproval: pb.RequiresApproval(),
		})
	}
	return summaries
}
