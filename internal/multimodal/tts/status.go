package tts

import "sync/atomic"

// DeploymentStatus is the advisory state of the primary deployment as last
// observed by the invoker.
type DeploymentStatus struct {
	inactive atomic.Bool
}

func (s *DeploymentStatus) MarkActive()   { s.inactive.Store(false) }
func (s *DeploymentStatus) MarkInactive() { s.inactive.Store(true) }

// State returns "ACTIVE" or "INACTIVE".
func (s *DeploymentStatus) State() string {
	if s.inactive.Load() {
		return "INACTIVE"
	}
	return "ACTIVE"
}

func (s *DeploymentStatus) ModelAvailable() bool {
	return !s.inactive.Load()
}
