package coordinator

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrInvalidTransition = fmt.Errorf("invalid state transition")
)

type State string

const (
	StateCreated        State = "created"
	StateAuthenticating State = "authenticating"
	StateFetching       State = "fetching"
	StateFiltering      State = "filtering"
	StateUpdating       State = "updating"
	StateExporting      State = "exporting"
	StatePublishing     State = "publishing"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// FSM tracks the stage of a single run. Runs never share an FSM.
type FSM struct {
	mu          sync.Mutex
	Transitions map[State]map[State]struct{}

	current State
	logger  *zap.Logger
}

type FSMOption func(*FSM)

func FSMWithLogger(logger *zap.Logger) FSMOption {
	return func(f *FSM) {
		f.logger = logger
	}
}

func NewFSM(opts ...FSMOption) *FSM {
	f := &FSM{
		current: StateCreated,
		logger:  zap.NewNop(),

		Transitions: map[State]map[State]struct{}{
			StateCreated: {
				StateAuthenticating: {},
			},
			StateAuthenticating: {
				StateFetching: {},
				StateFailed:   {},
			},
			StateFetching: {
				StateFiltering: {},
				StateFailed:    {},
			},
			StateFiltering: {
				StateUpdating: {},
			},
			StateUpdating: {
				StateExporting: {},
				StateFailed:    {}, // host cancellation only
			},
			StateExporting: {
				StatePublishing: {},
				StateFailed:     {},
			},
			StatePublishing: {
				StateCompleted: {},
				StateFailed:    {},
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FSM) Current() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *FSM) canTransition(to State) bool {
	_, ok := f.Transitions[f.current][to]
	return ok
}

func (f *FSM) Transition(to State) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.canTransition(to) {
		f.logger.Error("invalid state transition",
			zap.String("from", string(f.current)),
			zap.String("to", string(to)),
		)
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.current, to)
	}
	previous := f.current
	f.current = to

	f.logger.Debug("state transitioned",
		zap.String("state", string(f.current)),
		zap.String("from", string(previous)),
	)
	return nil
}
