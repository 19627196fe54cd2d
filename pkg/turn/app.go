package turn

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mwhitten/go-parley/pkg/capture"
	"github.com/mwhitten/go-parley/pkg/dialog"
	"github.com/mwhitten/go-parley/pkg/reply"
	"github.com/mwhitten/go-parley/pkg/store"
	"github.com/mwhitten/go-parley/pkg/transport"
)

// Agent consumes transport events and runs turns. Each speaking event and
// each text command gets its own goroutine; the session registry inside
// the capturer keeps concurrent events for one speaker single-flight.
type Agent struct {
	recv     transport.Receiver
	text     transport.TextChannel
	capturer Capturer
	orch     *Orchestrator
	logger   *slog.Logger

	mu      sync.Mutex
	waiters map[string]chan string
}

// NewAgent wires the event loop. text may be nil for a voice-only agent.
func NewAgent(recv transport.Receiver, text transport.TextChannel, capturer Capturer, orch *Orchestrator) *Agent {
	return &Agent{
		recv:     recv,
		text:     text,
		capturer: capturer,
		orch:     orch,
		logger:   slog.Default().With("component", "agent"),
		waiters:  make(map[string]chan string),
	}
}

// Run consumes events until the context is cancelled or the transport
// closes its event streams.
func (a *Agent) Run(ctx context.Context) error {
	var messages <-chan transport.TextMessage
	if a.text != nil {
		messages = a.text.Messages()
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-a.recv.SpeakingStarted():
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.handleSpeaking(ctx, ev)
			}()

		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			if a.deliver(msg) {
				continue
			}
			if a.orch.classifier.Classify(msg.Text) == IntentRegisterSchedule {
				// Register the waiter before handing off so a reply
				// arriving right behind the trigger routes to the
				// exchange instead of starting a fresh command.
				conv := a.registerTextDialog(msg)
				wg.Add(1)
				go func() {
					defer wg.Done()
					a.runTextDialog(ctx, msg, conv)
				}()
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.handleText(ctx, msg)
			}()
		}
	}
}

// handleSpeaking captures one utterance and runs the turn.
func (a *Agent) handleSpeaking(ctx context.Context, ev transport.SpeakingEvent) {
	// A speaking event for a speaker inside a registration exchange is
	// their answer; the dialog's own listen captures it.
	if a.orch.inDialog(ev.SpeakerID) {
		a.logger.Debug("speaker owned by dialog", "speaker", ev.SpeakerID)
		return
	}

	utt, err := a.capturer.Capture(ctx, ev.SpeakerID)
	if err != nil {
		switch {
		case errors.Is(err, capture.ErrSpeakerBusy):
			a.logger.Debug("speaker already captured", "speaker", ev.SpeakerID)
		case errors.Is(err, capture.ErrNothingCaptured):
			a.logger.Debug("no audio captured", "speaker", ev.SpeakerID)
		case errors.Is(err, context.Canceled):
		default:
			a.logger.Error("capture failed", "speaker", ev.SpeakerID, "error", err)
		}
		return
	}

	t := a.orch.RunTurn(ctx, utt, ev.ChannelID)
	if t.Status == StatusFailed {
		a.logger.Warn("turn ended failed", "speaker", ev.SpeakerID)
	}
}

// handleText answers a plain text command with a generated reply.
func (a *Agent) handleText(ctx context.Context, msg transport.TextMessage) {
	history, err := a.orch.store.RecentContext(ctx, msg.ChannelID, a.orch.cfg.ContextLimit)
	if err != nil {
		a.logger.Warn("context fetch failed, replying without history", "error", err)
		history = nil
	}

	a.orch.record(ctx, store.Message{
		ChannelID: msg.ChannelID,
		Direction: store.DirectionInbound,
		Actor:     msg.AuthorID,
		Text:      msg.Text,
		Metadata:  map[string]any{"source": "text"},
	})

	text, err := a.orch.reply.Generate(ctx, &reply.Request{
		Persona:  a.orch.cfg.Persona,
		Context:  history,
		UserText: msg.Text,
	})
	if err != nil {
		a.logger.Error("reply generation failed", "author", msg.AuthorID, "error", err)
		a.orch.log(ctx, msg.ChannelID, "reply", err)
		text = ApologyText
	}

	if err := a.text.Send(ctx, msg.ChannelID, text); err != nil {
		a.logger.Error("text send failed", "channel", msg.ChannelID, "error", err)
		a.orch.log(ctx, msg.ChannelID, "text", err)
		return
	}

	a.orch.record(ctx, store.Message{
		ChannelID: msg.ChannelID,
		Direction: store.DirectionOutbound,
		Actor:     "agent",
		Text:      text,
		Metadata:  map[string]any{"source": "text"},
	})
}

// registerTextDialog builds the exchange's converser and routes the
// author's messages to it. Runs on the event loop so the waiter exists
// before any later message is dispatched.
func (a *Agent) registerTextDialog(msg transport.TextMessage) *textConverser {
	conv := &textConverser{
		channelID: msg.ChannelID,
		send:      a.text.Send,
		inbox:     make(chan string, 4),
	}
	a.mu.Lock()
	a.waiters[waiterKey(msg.ChannelID, msg.AuthorID)] = conv.inbox
	a.mu.Unlock()
	return conv
}

// runTextDialog drives the registration exchange over the text channel.
// While the exchange runs, the author's messages route to it instead of
// starting new commands.
func (a *Agent) runTextDialog(ctx context.Context, msg transport.TextMessage, conv *textConverser) {
	defer func() {
		a.mu.Lock()
		delete(a.waiters, waiterKey(msg.ChannelID, msg.AuthorID))
		a.mu.Unlock()
	}()

	outcome, err := dialog.Run(ctx, a.orch.cfg.Dialog, conv, a.orch.sheet)
	if err != nil {
		a.logger.Error("text dialog failed", "author", msg.AuthorID, "error", err)
		a.orch.log(ctx, msg.ChannelID, "dialog", err)
		return
	}
	a.logger.Info("text dialog complete",
		"author", msg.AuthorID,
		"stage", outcome.Stage.String(),
	)
}

// deliver routes a message to an active dialog waiter, if any.
func (a *Agent) deliver(msg transport.TextMessage) bool {
	a.mu.Lock()
	inbox, ok := a.waiters[waiterKey(msg.ChannelID, msg.AuthorID)]
	a.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case inbox <- msg.Text:
	default:
		// Waiter backlog full; drop rather than block the event loop.
	}
	return true
}

func waiterKey(channelID, authorID string) string {
	return channelID + "/" + authorID
}

// textConverser adapts the text channel to the dialog's prompt/listen
// contract.
type textConverser struct {
	channelID string
	send      func(ctx context.Context, channelID, text string) error
	inbox     chan string
}

// Prompt sends the text to the channel.
func (t *textConverser) Prompt(ctx context.Context, text string) error {
	return t.send(ctx, t.channelID, text)
}

// Listen waits up to wait for the author's next message.
func (t *textConverser) Listen(ctx context.Context, wait time.Duration) (string, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case text := <-t.inbox:
		return text, nil
	case <-timer.C:
		return "", dialog.ErrListenTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

var _ dialog.Converser = (*textConverser)(nil)
