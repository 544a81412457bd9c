package tts

// StateType represents the current state of a playback session.
type StateType int

const (
	// StateIdle indicates no narration has started for the loaded text.
	StateIdle StateType = iota
	// StatePlaying indicates a sentence is being spoken.
	StatePlaying
	// StatePaused indicates narration is paused on the current sentence.
	StatePaused
	// StateStopped indicates narration was stopped or ran out of sentences.
	StateStopped
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PlaybackSession is a snapshot of the controller's session state.
type PlaybackSession struct {
	State     StateType
	Sentences []Sentence
	Index     int         // Sentence playing or last played
	Token     uint64      // Incremented on every effective stop
	Backend   BackendKind // Backend chosen for the current session
	Demoted   bool        // Remote failed and the session fell back to on-device
}

// IsActive returns true if narration is playing or paused.
func (s PlaybackSession) IsActive() bool {
	return s.State == StatePlaying || s.State == StatePaused
}

// Current returns the active sentence, if any.
func (s PlaybackSession) Current() (Sentence, bool) {
	if s.Index < 0 || s.Index >= len(s.Sentences) {
		return Sentence{}, false
	}
	return s.Sentences[s.Index], true
}

// Progress returns the fraction of sentences reached, from 0 to 1.
func (s PlaybackSession) Progress() float64 {
	if len(s.Sentences) == 0 || s.State == StateStopped || s.State == StateIdle {
		return 0
	}
	return float64(s.Index+1) / float64(len(s.Sentences))
}

// StateMachine manages state transitions for a playback session.
type StateMachine struct {
	current     StateType
	transitions map[StateType][]StateType
}

// NewStateMachine creates a new state machine with valid transitions.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[StateType][]StateType{
			StateIdle:    {StatePlaying, StateStopped},
			StatePlaying: {StatePaused, StateStopped},
			StatePaused:  {StatePlaying, StateStopped},
			StateStopped: {StatePlaying, StateIdle},
		},
	}
}

// CanTransition reports whether moving to the given state is allowed.
func (sm *StateMachine) CanTransition(to StateType) bool {
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			return true
		}
	}
	return false
}

// Transition attempts to transition to the specified state.
func (sm *StateMachine) Transition(to StateType) bool {
	if !sm.CanTransition(to) {
		return false
	}

	sm.current = to
	return true
}

// Current returns the current state.
func (sm *StateMachine) Current() StateType {
	return sm.current
}
