package turn

import "testing"

func TestKeywordClassifier(t *testing.T) {
	c := KeywordClassifier{}

	register := []string{
		"please register my schedule for Monday",
		"REGISTER a SCHEDULE",
		"can you schedule this and register it",
	}
	chat := []string{
		"what's the weather like",
		"register my complaint",
		"what's on the schedule today",
		"",
	}

	for _, text := range register {
		if got := c.Classify(text); got != IntentRegisterSchedule {
			t.Errorf("Classify(%q) = %v, want register_schedule", text, got)
		}
	}
	for _, text := range chat {
		if got := c.Classify(text); got != IntentNormalChat {
			t.Errorf("Classify(%q) = %v, want normal_chat", text, got)
		}
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusTranscribing, "transcribing"},
		{StatusGenerating, "generating"},
		{StatusSynthesizing, "synthesizing"},
		{StatusPlaying, "playing"},
		{StatusDone, "done"},
		{StatusFailed, "failed"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
