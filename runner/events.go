package runner

import "fmt"

// Event identifies a lifecycle boundary of the training loop.
type Event int

const (
	StageStart Event = iota
	EpochStart
	LoaderStart
	BatchStart
	BatchEnd
	LoaderEnd
	EpochEnd
	StageEnd
)

func (e Event) String() string {
	switch e {
	case StageStart:
		return "stage_start"
	case EpochStart:
		return "epoch_start"
	case LoaderStart:
		return "loader_start"
	case BatchStart:
		return "batch_start"
	case BatchEnd:
		return "batch_end"
	case LoaderEnd:
		return "loader_end"
	case EpochEnd:
		return "epoch_end"
	case StageEnd:
		return "stage_end"
	default:
		return fmt.Sprintf("Unknown(%d)", int(e))
	}
}

// Callback observes lifecycle events of a run. Handlers receive the live
// RunState and may mutate it (add metric values, set EarlyStop). Handlers
// run sequentially in registration order; the first error aborts the run.
//
// Embed NopCallback to implement only the events you care about.
type Callback interface {
	OnStageStart(state *RunState) error
	OnEpochStart(state *RunState) error
	OnLoaderStart(state *RunState) error
	OnBatchStart(state *RunState) error
	OnBatchEnd(state *RunState) error
	OnLoaderEnd(state *RunState) error
	OnEpochEnd(state *RunState) error
	OnStageEnd(state *RunState) error
}

// NopCallback implements Callback with no-op handlers.
type NopCallback struct{}

func (NopCallback) OnStageStart(*RunState) error  { return nil }
func (NopCallback) OnEpochStart(*RunState) error  { return nil }
func (NopCallback) OnLoaderStart(*RunState) error { return nil }
func (NopCallback) OnBatchStart(*RunState) error  { return nil }
func (NopCallback) OnBatchEnd(*RunState) error    { return nil }
func (NopCallback) OnLoaderEnd(*RunState) error   { return nil }
func (NopCallback) OnEpochEnd(*RunState) error    { return nil }
func (NopCallback) OnStageEnd(*RunState) error    { return nil }

// dispatch maps each event to its handler method. Built once so firing an
// event is a table lookup rather than a switch per callback.
var dispatch = map[Event]func(Callback, *RunState) error{
	StageStart:  Callback.OnStageStart,
	EpochStart:  Callback.OnEpochStart,
	LoaderStart: Callback.OnLoaderStart,
	BatchStart:  Callback.OnBatchStart,
	BatchEnd:    Callback.OnBatchEnd,
	LoaderEnd:   Callback.OnLoaderEnd,
	EpochEnd:    Callback.OnEpochEnd,
	StageEnd:    Callback.OnStageEnd,
}

// fireEvent runs the state pre-hook, every callback in order, then the state
// post-hook. Later callbacks see the effects of earlier ones.
func fireEvent(e Event, state *RunState, callbacks []Callback) error {
	handler := dispatch[e]

	if state != nil {
		state.preHook(e)
	}

	for _, cb := range callbacks {
		if err := handler(cb, state); err != nil {
			return fmt.Errorf("%s: %w", e, err)
		}
	}

	if state != nil {
		state.postHook(e)
	}
	return nil
}
