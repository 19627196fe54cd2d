package turn

import "strings"

// Intent tags what the user is asking for.
type Intent int

const (
	// IntentNormalChat is a plain conversational message.
	IntentNormalChat Intent = iota

	// IntentRegisterSchedule triggers the registration confirmation
	// exchange.
	IntentRegisterSchedule
)

// String returns the intent name.
func (i Intent) String() string {
	switch i {
	case IntentRegisterSchedule:
		return "register_schedule"
	default:
		return "normal_chat"
	}
}

// Classifier maps a transcript to an intent. Implementations are
// swappable without touching the dialog state machine.
type Classifier interface {
	Classify(text string) Intent
}

// KeywordClassifier detects the registration intent when the text contains
// both a "register" token and a "schedule" token, case-insensitive.
type KeywordClassifier struct{}

// Classify implements Classifier.
func (KeywordClassifier) Classify(text string) Intent {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "register") && strings.Contains(lower, "schedule") {
		return IntentRegisterSchedule
	}
	return IntentNormalChat
}

var _ Classifier = KeywordClassifier{}
