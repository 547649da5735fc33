package orders

import (
	"context"
	"sync"
	"sync/atomic"
)

type InitState int32

const (
	Uninitialized InitState = iota
	Initializing
	Ready
)

func (s InitState) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Initializer runs a setup function until it succeeds once. Callers that arrive while an
// attempt is in flight wait for it; a failed attempt leaves the state uninitialized so the
// next caller retries.
type Initializer struct {
	mu    sync.Mutex
	state atomic.Int32
	run   func(ctx context.Context) error
}

func NewInitializer(run func(ctx context.Context) error) *Initializer {
	return &Initializer{run: run}
}

func (in *Initializer) Initialize(ctx context.Context) error {
	if in.State() == Ready {
		return nil
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.State() == Ready {
		return nil
	}
	in.state.Store(int32(Initializing))
	if err := in.run(ctx); err != nil {
		in.state.Store(int32(Uninitialized))
		return err
	}
	in.state.Store(int32(Ready))
	return nil
}

func (in *Initializer) State() InitState {
	return InitState(in.state.Load())
}
