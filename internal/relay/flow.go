package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"
)

// State is a step in the life of one inbound message.
type State string

const (
	StateReceived       State = "Received"
	StatePersisted      State = "Persisted"
	StateBroadcast      State = "Broadcast"
	StateReplyScheduled State = "ReplyScheduled"
	StateReplyPersisted State = "ReplyPersisted"
	StateReplyBroadcast State = "ReplyBroadcast"
	StateDone           State = "Done"
	StateAborted        State = "Aborted" // terminal, entered on persistence failure
)

type trigger string

const (
	triggerPersisted      trigger = "persisted"
	triggerBroadcast      trigger = "broadcast"
	triggerScheduled      trigger = "scheduled"
	triggerReplyPersisted trigger = "replyPersisted"
	triggerReplyBroadcast trigger = "replyBroadcast"
	triggerFinish         trigger = "finish"
	triggerAbort          trigger = "abort"
)

// Observer is notified of every state a flow enters.
type Observer func(flowID string, state State)

// flow drives one message through the relay states. Transitions are strictly
// sequential; the only branch is into Aborted.
type flow struct {
	id     string
	mu     sync.Mutex
	sm     *stateless.StateMachine
	logger *slog.Logger
}

func newFlow(logger *slog.Logger, observer Observer) *flow {
	f := &flow{
		id:     uuid.NewString(),
		sm:     stateless.NewStateMachine(StateReceived),
		logger: logger,
	}

	f.sm.Configure(StateReceived).
		Permit(triggerPersisted, StatePersisted).
		Permit(triggerAbort, StateAborted)
	f.sm.Configure(StatePersisted).
		Permit(triggerBroadcast, StateBroadcast)
	f.sm.Configure(StateBroadcast).
		Permit(triggerScheduled, StateReplyScheduled)
	f.sm.Configure(StateReplyScheduled).
		Permit(triggerReplyPersisted, StateReplyPersisted).
		Permit(triggerAbort, StateAborted)
	f.sm.Configure(StateReplyPersisted).
		Permit(triggerReplyBroadcast, StateReplyBroadcast)
	f.sm.Configure(StateReplyBroadcast).
		Permit(triggerFinish, StateDone)

	f.sm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		dest, _ := t.Destination.(State)
		logger.Debug("Relay flow transition", "flow_id", f.id, "from", t.Source, "to", dest)
		if observer != nil {
			observer(f.id, dest)
		}
	})

	if observer != nil {
		observer(f.id, StateReceived)
	}
	return f
}

// advance fires t. A rejected transition is a programming error and is only
// logged.
func (f *flow) advance(ctx context.Context, t trigger) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.sm.FireCtx(ctx, t); err != nil {
		f.logger.Error("Relay flow transition rejected", "flow_id", f.id, "trigger", t, "error", err)
	}
}

// state returns the current state.
func (f *flow) state() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, _ := f.sm.MustState().(State)
	return s
}
