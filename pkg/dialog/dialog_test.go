package dialog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mwhitten/go-parley/pkg/sheets"
)

// scriptConverser replays canned answers and records prompts.
type scriptConverser struct {
	prompts []string
	answers []string
	next    int

	promptErr error
}

func (s *scriptConverser) Prompt(ctx context.Context, text string) error {
	if s.promptErr != nil {
		return s.promptErr
	}
	s.prompts = append(s.prompts, text)
	return nil
}

func (s *scriptConverser) Listen(ctx context.Context, wait time.Duration) (string, error) {
	if s.next >= len(s.answers) {
		return "", ErrListenTimeout
	}
	answer := s.answers[s.next]
	s.next++
	return answer, nil
}

func TestRunConfirmedAppendsSuccessRow(t *testing.T) {
	conv := &scriptConverser{answers: []string{"Yes!", "alice", "Monday 10am"}}
	sheet := sheets.NewMock()

	outcome, err := Run(context.Background(), DefaultConfig(), conv, sheet)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Stage != StageDone {
		t.Errorf("Stage = %v", outcome.Stage)
	}
	if len(outcome.Fields) != 2 || outcome.Fields[0] != "alice" || outcome.Fields[1] != "Monday 10am" {
		t.Errorf("Fields = %v", outcome.Fields)
	}

	rows := sheet.Rows()
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want exactly one append", len(rows))
	}
	want := []string{"alice", "Monday 10am", "registered"}
	for i, cell := range want {
		if rows[0][i] != cell {
			t.Errorf("row = %v, want %v", rows[0], want)
			break
		}
	}

	// Confirm prompt, two field prompts, done message.
	if len(conv.prompts) != 4 {
		t.Errorf("prompts = %v", conv.prompts)
	}
}

func TestRunDeclineAppendsCancellationRow(t *testing.T) {
	conv := &scriptConverser{answers: []string{"no thanks"}}
	sheet := sheets.NewMock()

	outcome, err := Run(context.Background(), DefaultConfig(), conv, sheet)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Stage != StageAbandoned {
		t.Errorf("Stage = %v", outcome.Stage)
	}

	rows := sheet.Rows()
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	want := []string{"", "", "cancelled"}
	for i, cell := range want {
		if rows[0][i] != cell {
			t.Errorf("row = %v, want %v", rows[0], want)
			break
		}
	}
}

func TestRunTimeoutMidCollection(t *testing.T) {
	// Confirms, answers the first field, then goes silent.
	conv := &scriptConverser{answers: []string{"yes", "bob"}}
	sheet := sheets.NewMock()

	outcome, err := Run(context.Background(), DefaultConfig(), conv, sheet)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Stage != StageAbandoned {
		t.Errorf("Stage = %v", outcome.Stage)
	}
	if len(outcome.Fields) != 1 || outcome.Fields[0] != "bob" {
		t.Errorf("Fields = %v", outcome.Fields)
	}

	rows := sheet.Rows()
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	want := []string{"bob", "", "cancelled"}
	for i, cell := range want {
		if rows[0][i] != cell {
			t.Errorf("row = %v, want %v", rows[0], want)
			break
		}
	}
}

func TestRunNonAffirmativeNeverAppendsSuccess(t *testing.T) {
	for _, answer := range []string{"yeah", "sure", "ok", "yes please", ""} {
		conv := &scriptConverser{answers: []string{answer}}
		sheet := sheets.NewMock()

		outcome, err := Run(context.Background(), DefaultConfig(), conv, sheet)
		if err != nil {
			t.Fatalf("Run(%q): %v", answer, err)
		}
		if outcome.Stage != StageAbandoned {
			t.Errorf("answer %q: Stage = %v, want abandoned", answer, outcome.Stage)
		}
		for _, row := range sheet.Rows() {
			if row[len(row)-1] == "registered" {
				t.Errorf("answer %q produced a success row", answer)
			}
		}
	}
}

func TestAffirmative(t *testing.T) {
	yes := []string{"yes", "YES", "Yes.", " yes! ", `"yes"`}
	no := []string{"yeah", "no", "yes no", "yess", ""}

	for _, s := range yes {
		if !affirmative(s) {
			t.Errorf("affirmative(%q) = false", s)
		}
	}
	for _, s := range no {
		if affirmative(s) {
			t.Errorf("affirmative(%q) = true", s)
		}
	}
}

func TestRunPromptFailureAborts(t *testing.T) {
	conv := &scriptConverser{promptErr: errors.New("channel gone")}
	sheet := sheets.NewMock()

	if _, err := Run(context.Background(), DefaultConfig(), conv, sheet); err == nil {
		t.Fatal("expected prompt failure to surface")
	}
	if len(sheet.Rows()) != 0 {
		t.Error("no row should be appended when the prompt never reached the user")
	}
}

func TestRunAppendFailureSurfaces(t *testing.T) {
	conv := &scriptConverser{answers: []string{"yes", "alice", "Monday"}}
	sheet := sheets.NewMock()
	sheet.Err = errors.New("quota exceeded")

	outcome, err := Run(context.Background(), DefaultConfig(), conv, sheet)
	if err == nil {
		t.Fatal("expected append failure to surface")
	}
	if outcome.Stage == StageDone {
		t.Error("exchange must not report done when the append failed")
	}
}
