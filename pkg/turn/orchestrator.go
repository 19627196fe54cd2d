package turn

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"
	"time"
	"unicode"

	"github.com/mwhitten/go-parley/pkg/audiofile"
	"github.com/mwhitten/go-parley/pkg/capture"
	"github.com/mwhitten/go-parley/pkg/dialog"
	"github.com/mwhitten/go-parley/pkg/reply"
	"github.com/mwhitten/go-parley/pkg/store"
	"github.com/mwhitten/go-parley/pkg/stt"
	"github.com/mwhitten/go-parley/pkg/tts"
)

// ApologyText is spoken when reply generation fails. The user always hears
// something rather than silence after a recognized utterance.
const ApologyText = "Sorry, I didn't catch that clearly."

// Transcriber is the STT capability the orchestrator needs.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (*stt.Result, error)
}

// Replier is the reply-generation capability the orchestrator needs.
type Replier interface {
	Generate(ctx context.Context, req *reply.Request) (string, error)
}

// Synthesizer is the TTS capability the orchestrator needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*tts.AudioResult, error)
}

// Player plays a reply artifact and blocks until the channel is idle.
type Player interface {
	Play(ctx context.Context, channelID, path string) error
}

// Capturer records one utterance. The dialog voice path re-enters capture
// through this.
type Capturer interface {
	Capture(ctx context.Context, speakerID string) (*capture.Utterance, error)
}

// Config holds orchestrator settings.
type Config struct {
	// Persona is the fixed system instruction for reply generation.
	Persona string

	// ContextLimit bounds how many recent messages feed each reply.
	ContextLimit int

	// TempDir is where reply artifacts are written.
	TempDir string

	// Dialog parameterizes the registration confirmation exchange.
	Dialog dialog.Config
}

// DefaultPersona instructs brevity and confirmation before action.
const DefaultPersona = "You are a friendly voice companion in a group channel. " +
	"Keep replies short, a sentence or two, and conversational. " +
	"Never take an action on someone's behalf without confirming first."

// DefaultConfig returns standard orchestrator settings.
func DefaultConfig() Config {
	return Config{
		Persona:      DefaultPersona,
		ContextLimit: 5,
		TempDir:      "",
		Dialog:       dialog.DefaultConfig(),
	}
}

// Orchestrator runs conversation turns.
type Orchestrator struct {
	cfg        Config
	stt        Transcriber
	reply      Replier
	tts        Synthesizer
	player     Player
	capturer   Capturer
	store      store.Store
	sheet      dialog.RowAppender
	classifier Classifier
	logger     *slog.Logger

	dialogMu       sync.Mutex
	dialogSpeakers map[string]struct{}
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClassifier replaces the keyword intent classifier.
func WithClassifier(c Classifier) Option {
	return func(o *Orchestrator) {
		o.classifier = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger.With("component", "turn")
	}
}

// NewOrchestrator wires the turn pipeline.
func NewOrchestrator(
	cfg Config,
	transcriber Transcriber,
	replier Replier,
	synth Synthesizer,
	player Player,
	capturer Capturer,
	st store.Store,
	sheet dialog.RowAppender,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		stt:        transcriber,
		reply:      replier,
		tts:        synth,
		player:     player,
		capturer:   capturer,
		store:      st,
		sheet:      sheet,
		classifier: KeywordClassifier{},
		logger:     slog.Default().With("component", "turn"),

		dialogSpeakers: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunTurn drives one turn from a finished utterance to a played reply.
// All artifacts created during the turn are removed on every exit path.
func (o *Orchestrator) RunTurn(ctx context.Context, utt *capture.Utterance, channelID string) *Turn {
	t := &Turn{
		SpeakerID: utt.SpeakerID,
		ChannelID: channelID,
		Status:    StatusTranscribing,
	}

	defer func() {
		if err := audiofile.Remove(utt.Path); err != nil {
			o.logger.Warn("utterance artifact cleanup failed", "path", utt.Path, "error", err)
		}
	}()

	result, err := o.stt.Transcribe(ctx, utt.Path)
	if err != nil {
		return o.fail(ctx, t, "stt", err)
	}

	if !meaningful(result.Text) {
		// Silence should not provoke a spoken response.
		t.Status = StatusDone
		o.logger.Debug("silent turn", "speaker", t.SpeakerID)
		return t
	}
	t.Transcript = result.Text

	// Fetch history before recording the new message so the context window
	// holds what came before this turn, not the turn itself.
	history, err := o.store.RecentContext(ctx, channelID, o.cfg.ContextLimit)
	if err != nil {
		o.logger.Warn("context fetch failed, replying without history", "error", err)
		history = nil
	}

	o.record(ctx, store.Message{
		ChannelID: channelID,
		Direction: store.DirectionInbound,
		Actor:     t.SpeakerID,
		Text:      t.Transcript,
		Metadata:  map[string]any{"latency_ms": result.LatencyMs, "source": "voice"},
	})

	if o.classifier.Classify(t.Transcript) == IntentRegisterSchedule {
		return o.runDialogTurn(ctx, t)
	}

	t.Status = StatusGenerating
	t.ReplyText = o.generate(ctx, t, history)

	o.record(ctx, store.Message{
		ChannelID: channelID,
		Direction: store.DirectionOutbound,
		Actor:     "agent",
		Text:      t.ReplyText,
		Metadata:  map[string]any{"source": "voice"},
	})

	t.Status = StatusSynthesizing
	replyPath, err := o.synthesizeArtifact(ctx, t.ReplyText)
	if err != nil {
		return o.fail(ctx, t, "tts", err)
	}
	defer func() {
		if err := audiofile.Remove(replyPath); err != nil {
			o.logger.Warn("reply artifact cleanup failed", "path", replyPath, "error", err)
		}
	}()

	t.Status = StatusPlaying
	if err := o.player.Play(ctx, channelID, replyPath); err != nil {
		return o.fail(ctx, t, "playback", err)
	}

	t.Status = StatusDone
	o.logger.Info("turn complete",
		"speaker", t.SpeakerID,
		"channel", channelID,
		"transcript_chars", len(t.Transcript),
	)
	return t
}

// runDialogTurn hands control to the registration confirmation exchange.
// Dialog timeouts are cancellations, not turn failures. While the exchange
// runs it owns the speaker: their speaking events belong to the dialog's
// listens, not to fresh turns.
func (o *Orchestrator) runDialogTurn(ctx context.Context, t *Turn) *Turn {
	conv := &voiceConverser{
		orch:      o,
		speakerID: t.SpeakerID,
		channelID: t.ChannelID,
	}

	o.beginDialog(t.SpeakerID)
	defer o.endDialog(t.SpeakerID)

	outcome, err := dialog.Run(ctx, o.cfg.Dialog, conv, o.sheet)
	if err != nil {
		return o.fail(ctx, t, "dialog", err)
	}

	t.Status = StatusDone
	o.logger.Info("dialog turn complete",
		"speaker", t.SpeakerID,
		"stage", outcome.Stage.String(),
		"fields", len(outcome.Fields),
	)
	return t
}

// beginDialog marks the speaker as owned by an active voice dialog.
func (o *Orchestrator) beginDialog(speakerID string) {
	o.dialogMu.Lock()
	o.dialogSpeakers[speakerID] = struct{}{}
	o.dialogMu.Unlock()
}

// endDialog releases the speaker when the dialog finishes.
func (o *Orchestrator) endDialog(speakerID string) {
	o.dialogMu.Lock()
	delete(o.dialogSpeakers, speakerID)
	o.dialogMu.Unlock()
}

// inDialog reports whether a voice dialog currently owns the speaker.
func (o *Orchestrator) inDialog(speakerID string) bool {
	o.dialogMu.Lock()
	defer o.dialogMu.Unlock()
	_, ok := o.dialogSpeakers[speakerID]
	return ok
}

// generate produces the reply text, substituting a fixed apology on
// provider failure.
func (o *Orchestrator) generate(ctx context.Context, t *Turn, history []string) string {
	text, err := o.reply.Generate(ctx, &reply.Request{
		Persona:  o.cfg.Persona,
		Context:  history,
		UserText: t.Transcript,
	})
	if err != nil {
		o.logger.Error("reply generation failed", "speaker", t.SpeakerID, "error", err)
		o.log(ctx, t.ChannelID, "reply", err)
		return ApologyText
	}
	return text
}

// synthesizeArtifact converts text to speech and writes a turn-unique WAV
// artifact, returning its path.
func (o *Orchestrator) synthesizeArtifact(ctx context.Context, text string) (string, error) {
	result, err := o.tts.Synthesize(ctx, text)
	if err != nil {
		return "", err
	}

	path := audiofile.TempPath(o.cfg.TempDir, "reply")
	samples := pcmToSamples(result.Audio)
	if err := audiofile.WriteFile(path, samples, result.Format.SampleRate, result.Format.Channels); err != nil {
		return "", err
	}
	return path, nil
}

// speak synthesizes text and plays it on the channel, cleaning up the
// artifact afterwards. The dialog voice path prompts through this.
func (o *Orchestrator) speak(ctx context.Context, channelID, text string) error {
	path, err := o.synthesizeArtifact(ctx, text)
	if err != nil {
		return err
	}
	defer func() {
		if err := audiofile.Remove(path); err != nil {
			o.logger.Warn("prompt artifact cleanup failed", "path", path, "error", err)
		}
	}()

	return o.player.Play(ctx, channelID, path)
}

// fail moves the turn to its failed terminal state and records the failure.
func (o *Orchestrator) fail(ctx context.Context, t *Turn, stage string, err error) *Turn {
	t.Status = StatusFailed
	t.Err = err
	o.logger.Error("turn failed",
		"speaker", t.SpeakerID,
		"channel", t.ChannelID,
		"stage", stage,
		"error", err,
	)
	o.log(ctx, t.ChannelID, stage, err)
	return t
}

// record persists a message, logging rather than failing the turn when the
// store is down.
func (o *Orchestrator) record(ctx context.Context, msg store.Message) {
	if err := o.store.AppendMessage(ctx, msg); err != nil {
		o.logger.Warn("message persist failed", "channel", msg.ChannelID, "error", err)
	}
}

// log persists a failure entry, best-effort.
func (o *Orchestrator) log(ctx context.Context, channelID, stage string, err error) {
	entry := store.LogEntry{
		ChannelID: channelID,
		Stage:     stage,
		Detail:    err.Error(),
		At:        time.Now(),
	}
	if logErr := o.store.AppendLog(ctx, entry); logErr != nil {
		o.logger.Warn("failure log persist failed", "stage", stage, "error", logErr)
	}
}

// voiceConverser adapts the capture and playback pipeline to the dialog's
// prompt/listen contract.
type voiceConverser struct {
	orch      *Orchestrator
	speakerID string
	channelID string
}

// Prompt speaks the text into the channel.
func (v *voiceConverser) Prompt(ctx context.Context, text string) error {
	return v.orch.speak(ctx, v.channelID, text)
}

// busyRetryInterval paces re-entry attempts while a stray capture still
// holds the speaker.
const busyRetryInterval = 50 * time.Millisecond

// Listen re-enters the capture pipeline with a bounded wait and transcribes
// the answer. A timed-out or empty capture reads as a listen timeout.
func (v *voiceConverser) Listen(ctx context.Context, wait time.Duration) (string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	utt, err := v.captureAnswer(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, capture.ErrNothingCaptured) {
			return "", dialog.ErrListenTimeout
		}
		return "", err
	}
	defer func() {
		if err := audiofile.Remove(utt.Path); err != nil {
			v.orch.logger.Warn("answer artifact cleanup failed", "path", utt.Path, "error", err)
		}
	}()

	result, err := v.orch.stt.Transcribe(ctx, utt.Path)
	if err != nil {
		return "", err
	}
	if !meaningful(result.Text) {
		return "", dialog.ErrListenTimeout
	}
	return result.Text, nil
}

// captureAnswer waits out a competing capture of the same speaker instead
// of failing the exchange. The answer window bounds the retries.
func (v *voiceConverser) captureAnswer(ctx context.Context) (*capture.Utterance, error) {
	for {
		utt, err := v.orch.capturer.Capture(ctx, v.speakerID)
		if !errors.Is(err, capture.ErrSpeakerBusy) {
			return utt, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(busyRetryInterval):
		}
	}
}

var _ dialog.Converser = (*voiceConverser)(nil)

// meaningful reports whether the transcript carries at least one letter or
// digit.
func meaningful(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// pcmToSamples reinterprets little-endian PCM16 bytes as samples. A
// trailing odd byte is dropped.
func pcmToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return samples
}
