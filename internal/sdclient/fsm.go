// Package sdclient implements the SD Client State Machine (C9, spec.md
// §4.9) and its instance-id-ALL variant (C10, spec.md §4.10).
//
// The FSM itself is a pure function built from one switch function per
// state, the same shape as the teacher's bfd.ApplyEvent: no timers, no I/O, no side
// effects beyond the Action values it returns. The owning goroutine
// (Client, in client.go) executes those actions and owns the actual
// timers and counters.
package sdclient

// State is one of the five SD client lifecycle phases (spec.md §4.9).
type State uint8

const (
	StateStopped State = iota
	StateDown
	StateInitialWait
	StateRepetition
	StateMain
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateDown:
		return "Down"
	case StateInitialWait:
		return "InitialWait"
	case StateRepetition:
		return "Repetition"
	case StateMain:
		return "Main"
	default:
		return "Unknown"
	}
}

// Event is one input to the state machine (spec.md §4.9).
type Event uint8

const (
	EventNetworkUp Event = iota
	EventNetworkDown
	EventServiceRequested
	EventServiceReleased
	EventOfferService
	EventOfferTtlExpired
	EventTimeout
	EventSdStart
	EventSdStop
)

func (e Event) String() string {
	switch e {
	case EventNetworkUp:
		return "NetworkUp"
	case EventNetworkDown:
		return "NetworkDown"
	case EventServiceRequested:
		return "ServiceRequested"
	case EventServiceReleased:
		return "ServiceReleased"
	case EventOfferService:
		return "OfferService"
	case EventOfferTtlExpired:
		return "OfferTtlExpired"
	case EventTimeout:
		return "Timeout"
	case EventSdStart:
		return "SdStart"
	case EventSdStop:
		return "SdStop"
	default:
		return "Unknown"
	}
}

// Action is a side effect the owning Client must perform after a
// transition. The FSM never performs these itself.
type Action uint8

const (
	// ActionArmInitialWaitTimer arms a single-shot timer with a uniformly
	// random delay in [initial_min, initial_max] (spec.md §4.9).
	ActionArmInitialWaitTimer Action = iota + 1
	// ActionArmRepetitionTimer arms a single-shot timer for
	// base_delay * 2^repetitionStep.
	ActionArmRepetitionTimer
	// ActionSendFindService transmits a FindService entry for this RSI
	// (spec.md §4.9.2).
	ActionSendFindService
	// ActionCancelTimer cancels any currently-armed SM timer.
	ActionCancelTimer
)

func (a Action) String() string {
	switch a {
	case ActionArmInitialWaitTimer:
		return "ArmInitialWaitTimer"
	case ActionArmRepetitionTimer:
		return "ArmRepetitionTimer"
	case ActionSendFindService:
		return "SendFindService"
	case ActionCancelTimer:
		return "CancelTimer"
	default:
		return "Unknown"
	}
}

// Guards carries the boolean predicates the original C++ state machine
// exposes as protected virtual methods (IsServiceAvailable, IsNetworkUp,
// IsServiceRequested — see original_source's
// service_discovery_client_state_machine.h). Keeping them as an explicit
// struct argument, rather than methods the FSM calls back into, is what
// keeps ApplyEvent a pure function.
type Guards struct {
	NetworkUp        bool
	ServiceRequested bool
	ServiceAvailable bool
}

// FSMResult is the outcome of one ApplyEvent call. The repetition count N
// from spec.md §4.9 ("RepetitionPhase: at step k (k=0..N-1) ... After N
// repetitions the state advances to MainPhase") is passed to ApplyEvent
// per call as maxRepetitions, so it can come from configuration without
// being baked into the FSM.
type FSMResult struct {
	OldState       State
	NewState       State
	Actions        []Action
	RepetitionStep int
	Changed        bool
}

// ApplyEvent computes the next state and the actions to perform, given
// the current state, the event, the current guard values, the current
// repetition step (meaningful only in StateRepetition), and the
// configured repetition count N.
func ApplyEvent(current State, event Event, g Guards, repetitionStep int, maxRepetitions int) FSMResult {
	result := FSMResult{OldState: current, NewState: current, RepetitionStep: repetitionStep}

	// SdStop/SdStart bracket everything else: a stopped client ignores all
	// other events, and only SdStart can leave Stopped.
	if current == StateStopped {
		if event == EventSdStart {
			result.NewState = StateDown
			result.Changed = true
		}
		return result
	}

	if event == EventSdStop {
		result.NewState = StateStopped
		result.Actions = []Action{ActionCancelTimer}
		result.Changed = current != StateStopped
		return result
	}

	// "Any -> DownPhase on OnNetworkDown" and "OnServiceReleased from any
	// active state returns to DownPhase" (spec.md §4.9).
	if event == EventNetworkDown || event == EventServiceReleased {
		if current != StateDown {
			result.NewState = StateDown
			result.Actions = []Action{ActionCancelTimer}
			result.Changed = true
		}
		return result
	}

	switch current {
	case StateDown:
		applyFromDown(&result, event, g)
	case StateInitialWait:
		applyFromInitialWait(&result, event, g, maxRepetitions)
	case StateRepetition:
		applyFromRepetition(&result, event, g, repetitionStep, maxRepetitions)
	case StateMain:
		applyFromMain(&result, event, g)
	}

	result.Changed = result.NewState != result.OldState
	return result
}

// applyFromDown handles "DownPhase -> InitialWaitPhase when both network
// is up AND service is requested AND service is not yet available."
func applyFromDown(result *FSMResult, event Event, g Guards) {
	switch event {
	case EventNetworkUp, EventServiceRequested:
		if g.NetworkUp && g.ServiceRequested && !g.ServiceAvailable {
			result.NewState = StateInitialWait
			result.Actions = []Action{ActionArmInitialWaitTimer}
		}
	case EventOfferService:
		// An offer arriving while down (e.g. late multicast) does not by
		// itself start the client; the Client discards it.
	}
}

func applyFromInitialWait(result *FSMResult, event Event, g Guards, maxRepetitions int) {
	switch event {
	case EventOfferService:
		result.NewState = StateMain
		result.Actions = []Action{ActionCancelTimer}
	case EventTimeout:
		result.NewState = StateRepetition
		result.RepetitionStep = 0
		if maxRepetitions > 0 {
			result.Actions = []Action{ActionSendFindService, ActionArmRepetitionTimer}
		} else {
			result.NewState = StateMain
			result.Actions = []Action{ActionSendFindService}
		}
	}
}

func applyFromRepetition(result *FSMResult, event Event, g Guards, repetitionStep int, maxRepetitions int) {
	switch event {
	case EventOfferService:
		result.NewState = StateMain
		result.Actions = []Action{ActionCancelTimer}
	case EventTimeout:
		next := repetitionStep + 1
		if next < maxRepetitions {
			result.NewState = StateRepetition
			result.RepetitionStep = next
			result.Actions = []Action{ActionSendFindService, ActionArmRepetitionTimer}
		} else {
			result.NewState = StateMain
			result.Actions = []Action{ActionSendFindService}
		}
	}
}

// applyFromMain handles "MainPhase -> InitialWaitPhase on
// OnOfferTtlExpired if service is still requested and network is up."
func applyFromMain(result *FSMResult, event Event, g Guards) {
	if event == EventOfferTtlExpired && g.ServiceRequested && g.NetworkUp {
		result.NewState = StateInitialWait
		result.Actions = []Action{ActionArmInitialWaitTimer}
	}
}
