// Package relay wires the message store, the hub, the scheduler and the
// responder together: every inbound message is persisted, broadcast, and
// answered by an automated reply after a random delay.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ashureev/chatflow/internal/domain"
	"github.com/ashureev/chatflow/internal/hub"
	"github.com/ashureev/chatflow/internal/scheduler"
	"github.com/ashureev/chatflow/internal/store"
)

const defaultStoreTimeout = 5 * time.Second

// MessageAppender persists messages.
type MessageAppender interface {
	AppendMessage(ctx context.Context, content, sender string) (domain.Message, error)
}

// Broadcaster delivers an event to every connected client.
type Broadcaster interface {
	Broadcast(event string, payload any) error
}

// Scheduler runs an action once after a random delay.
type Scheduler interface {
	Schedule(name string, action scheduler.Action) time.Duration
}

// Responder computes the automated reply for a message.
type Responder interface {
	Respond(userText string) string
}

// Config holds relay settings.
type Config struct {
	BotSender    string
	StoreTimeout time.Duration
	Observer     Observer
	Logger       *slog.Logger
}

// Relay runs the per-message flow. It holds no state across messages.
type Relay struct {
	store        MessageAppender
	hub          Broadcaster
	sched        Scheduler
	responder    Responder
	botSender    string
	storeTimeout time.Duration
	observer     Observer
	logger       *slog.Logger
}

// New creates a relay.
func New(st MessageAppender, b Broadcaster, s Scheduler, r Responder, cfg Config) *Relay {
	if cfg.BotSender == "" {
		cfg.BotSender = domain.SyntheticSender
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Relay{
		store:        st,
		hub:          b,
		sched:        s,
		responder:    r,
		botSender:    cfg.BotSender,
		storeTimeout: cfg.StoreTimeout,
		observer:     cfg.Observer,
		logger:       cfg.Logger,
	}
}

// HandleInbound is the hub callback. Failures are logged and the message is
// dropped; the sender gets no error.
func (r *Relay) HandleInbound(ctx context.Context, msg hub.InboundMessage) {
	saved, err := r.Process(ctx, msg.Content, msg.Sender)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, store.ErrStorageUnavailable) {
			level = slog.LevelError
		}
		r.logger.Log(ctx, level, "Inbound message dropped",
			"conn_id", msg.ConnID,
			"sender", msg.Sender,
			"error", err,
		)
		return
	}
	r.logger.Info("Message relayed", "message_id", saved.ID, "conn_id", msg.ConnID, "sender", saved.Sender)
}

// Process persists and broadcasts one message and schedules its reply. It
// returns the saved message once the reply is scheduled.
func (r *Relay) Process(ctx context.Context, content, sender string) (domain.Message, error) {
	f := newFlow(r.logger, r.observer)

	if err := domain.ValidateDraft(content, sender); err != nil {
		f.advance(ctx, triggerAbort)
		return domain.Message{}, fmt.Errorf("invalid message: %w", err)
	}

	// The write outlives the originating connection.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.storeTimeout)
	defer cancel()

	saved, err := r.store.AppendMessage(storeCtx, content, sender)
	if err != nil {
		f.advance(ctx, triggerAbort)
		return domain.Message{}, fmt.Errorf("persist message: %w", err)
	}
	f.advance(ctx, triggerPersisted)

	r.broadcast(saved)
	f.advance(ctx, triggerBroadcast)

	f.advance(ctx, triggerScheduled)
	delay := r.sched.Schedule("reply:"+strconv.FormatInt(saved.ID, 10), func() error {
		return r.reply(f, content)
	})
	r.logger.Debug("Reply scheduled", "message_id", saved.ID, "flow_id", f.id, "delay", delay)

	return saved, nil
}

// reply is the deferred half of a flow. Its error is logged by the scheduler.
func (r *Relay) reply(f *flow, original string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.storeTimeout)
	defer cancel()

	text := r.responder.Respond(original)
	saved, err := r.store.AppendMessage(ctx, text, r.botSender)
	if err != nil {
		f.advance(ctx, triggerAbort)
		return fmt.Errorf("persist reply: %w", err)
	}
	f.advance(ctx, triggerReplyPersisted)

	r.broadcast(saved)
	f.advance(ctx, triggerReplyBroadcast)
	f.advance(ctx, triggerFinish)

	r.logger.Info("Reply relayed", "message_id", saved.ID, "flow_id", f.id)
	return nil
}

func (r *Relay) broadcast(msg domain.Message) {
	if err := r.hub.Broadcast(hub.EventReceiveMessage, msg); err != nil {
		r.logger.Error("Failed to broadcast message", "message_id", msg.ID, "error", err)
	}
}
