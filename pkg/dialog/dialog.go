// Package dialog runs the schedule registration confirmation exchange.
//
// One state machine drives both the voice path and the text path. The
// caller supplies a Converser that knows how to put a prompt in front of
// the user and wait for their answer; voice conversers speak and capture,
// text conversers send and await a typed reply. Stage semantics are
// identical either way.
//
// The exchange confirms intent with a bounded yes/no question, then
// collects each configured field in order. A confirmed run appends the
// collected fields plus a status cell to the spreadsheet; any decline,
// unrecognized answer, or timeout appends a cancellation row instead. The
// spreadsheet always learns how the exchange ended.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Stage identifies where the exchange currently is.
type Stage int

const (
	// StageAwaitingConfirmation is the yes/no question.
	StageAwaitingConfirmation Stage = iota

	// StageCollectingField covers the per-field prompts.
	StageCollectingField

	// StageDone means the row was appended and the exchange confirmed.
	StageDone

	// StageAbandoned means the user declined, answered off-script, or
	// timed out.
	StageAbandoned
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageAwaitingConfirmation:
		return "awaiting_confirmation"
	case StageCollectingField:
		return "collecting_field"
	case StageDone:
		return "done"
	case StageAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Outcome reports how the exchange ended.
type Outcome struct {
	// Stage is StageDone or StageAbandoned.
	Stage Stage

	// Fields holds the collected answers, in prompt order. Partial on
	// abandonment.
	Fields []string
}

// ErrListenTimeout is returned by Converser.Listen when the wait window
// elapses without an answer.
var ErrListenTimeout = errors.New("dialog: listen timed out")

// Converser is the prompt/answer capability the state machine runs over.
type Converser interface {
	// Prompt puts text in front of the user (spoken or sent).
	Prompt(ctx context.Context, text string) error

	// Listen waits up to wait for the user's next answer. Returns
	// ErrListenTimeout when the window elapses.
	Listen(ctx context.Context, wait time.Duration) (string, error)
}

// RowAppender receives the final spreadsheet row.
type RowAppender interface {
	AppendRow(ctx context.Context, cells []string) error
}

// Field is one piece of information the exchange collects.
type Field struct {
	// Name labels the field (for logs).
	Name string

	// Prompt is what the user hears or reads.
	Prompt string
}

// Config parameterizes one exchange.
type Config struct {
	// ConfirmPrompt is the yes/no question.
	ConfirmPrompt string

	// Fields are collected in order after confirmation.
	Fields []Field

	// ConfirmWindow bounds the yes/no wait. Zero means 30s.
	ConfirmWindow time.Duration

	// FieldWindow bounds each field wait. Zero means 60s.
	FieldWindow time.Duration

	// DoneMessage is spoken/sent after the row is appended.
	DoneMessage string

	// CancelMessage is spoken/sent on decline or timeout.
	CancelMessage string

	// DoneStatus is the status cell appended after the collected fields.
	DoneStatus string

	// CancelStatus is the status cell for cancellation rows.
	CancelStatus string

	// Logger is optional.
	Logger *slog.Logger
}

// DefaultConfig returns the standard schedule registration exchange.
func DefaultConfig() Config {
	return Config{
		ConfirmPrompt: "You want to register a schedule, right? Please answer yes or no.",
		Fields: []Field{
			{Name: "name", Prompt: "What name should I register the schedule under?"},
			{Name: "dateTime", Prompt: "What date and time is the schedule for?"},
		},
		ConfirmWindow: 30 * time.Second,
		FieldWindow:   60 * time.Second,
		DoneMessage:   "All set, I registered your schedule.",
		CancelMessage: "Okay, I cancelled the schedule registration.",
		DoneStatus:    "registered",
		CancelStatus:  "cancelled",
	}
}

// Run executes one confirmation exchange. It always appends a row: the
// success row on completion, a cancellation row otherwise. Prompt and
// append failures abort the exchange with an error.
func Run(ctx context.Context, cfg Config, conv Converser, sheet RowAppender) (Outcome, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "dialog")

	confirmWindow := cfg.ConfirmWindow
	if confirmWindow == 0 {
		confirmWindow = 30 * time.Second
	}
	fieldWindow := cfg.FieldWindow
	if fieldWindow == 0 {
		fieldWindow = 60 * time.Second
	}

	outcome := Outcome{Stage: StageAwaitingConfirmation}

	if err := conv.Prompt(ctx, cfg.ConfirmPrompt); err != nil {
		return outcome, fmt.Errorf("dialog: confirm prompt: %w", err)
	}

	answer, err := conv.Listen(ctx, confirmWindow)
	if err != nil && !errors.Is(err, ErrListenTimeout) {
		return outcome, fmt.Errorf("dialog: confirm listen: %w", err)
	}
	if err != nil || !affirmative(answer) {
		logger.Info("exchange abandoned at confirmation", "answer", answer)
		return abandon(ctx, cfg, conv, sheet, outcome)
	}

	outcome.Stage = StageCollectingField
	for _, field := range cfg.Fields {
		if err := conv.Prompt(ctx, field.Prompt); err != nil {
			return outcome, fmt.Errorf("dialog: field prompt %s: %w", field.Name, err)
		}

		value, err := conv.Listen(ctx, fieldWindow)
		if err != nil {
			if errors.Is(err, ErrListenTimeout) {
				logger.Info("exchange abandoned collecting field", "field", field.Name)
				return abandon(ctx, cfg, conv, sheet, outcome)
			}
			return outcome, fmt.Errorf("dialog: field listen %s: %w", field.Name, err)
		}

		value = strings.TrimSpace(value)
		if value == "" {
			logger.Info("empty answer, abandoning exchange", "field", field.Name)
			return abandon(ctx, cfg, conv, sheet, outcome)
		}
		outcome.Fields = append(outcome.Fields, value)
	}

	row := append(append([]string{}, outcome.Fields...), cfg.DoneStatus)
	if err := sheet.AppendRow(ctx, row); err != nil {
		return outcome, fmt.Errorf("dialog: append row: %w", err)
	}

	outcome.Stage = StageDone
	logger.Info("exchange confirmed", "fields", len(outcome.Fields))

	if cfg.DoneMessage != "" {
		if err := conv.Prompt(ctx, cfg.DoneMessage); err != nil {
			return outcome, fmt.Errorf("dialog: done message: %w", err)
		}
	}
	return outcome, nil
}

// abandon records the cancellation row, tells the user, and returns the
// abandoned outcome. The row pads unanswered fields with empty cells so
// the status cell lands in a fixed column.
func abandon(ctx context.Context, cfg Config, conv Converser, sheet RowAppender, outcome Outcome) (Outcome, error) {
	outcome.Stage = StageAbandoned

	row := make([]string, 0, len(cfg.Fields)+1)
	row = append(row, outcome.Fields...)
	for len(row) < len(cfg.Fields) {
		row = append(row, "")
	}
	row = append(row, cfg.CancelStatus)

	if err := sheet.AppendRow(ctx, row); err != nil {
		return outcome, fmt.Errorf("dialog: append cancellation row: %w", err)
	}

	if cfg.CancelMessage != "" {
		if err := conv.Prompt(ctx, cfg.CancelMessage); err != nil {
			return outcome, fmt.Errorf("dialog: cancel message: %w", err)
		}
	}
	return outcome, nil
}

// affirmative reports whether the answer confirms the exchange. The answer
// must normalize to the single token "yes"; the text path's literal "YES"
// satisfies this.
func affirmative(answer string) bool {
	normalized := strings.ToLower(strings.TrimSpace(answer))
	normalized = strings.Trim(normalized, ".,!?\"'")
	return normalized == "yes"
}
