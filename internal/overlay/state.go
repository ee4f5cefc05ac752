package overlay

// State is the presenter-owned overlay state.
type State struct {
	Expanded    bool     `json:"expanded"`
	AIRequested bool     `json:"ai_requested"`
	LastLCP     *float64 `json:"last_lcp,omitempty"`
}
