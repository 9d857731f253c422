package model

// Option is one selectable answer of a question.
// Value may contain inline math markup; it is passed through untouched.
type Option struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Question is a multiple-choice question as loaded from the catalog API.
// Answer holds the ID of the correct option.
type Question struct {
	ID          string   `json:"id"`
	Prompt      string   `json:"question"`
	Options     []Option `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
}

// QuestionForPlayer is a question without the correct answer, sent to players
// while a quiz is still running.
type QuestionForPlayer struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"question"`
	Options []Option `json:"options"`
}

// ForPlayer strips the answer and explanation.
func (q Question) ForPlayer() QuestionForPlayer {
	opts := make([]Option, len(q.Options))
	copy(opts, q.Options)
	return QuestionForPlayer{
		ID:      q.ID,
		Prompt:  q.Prompt,
		Options: opts,
	}
}

// OptionValue returns the display value of the option with the given ID.
func (q Question) OptionValue(optionID string) (string, bool) {
	if optionID == "" {
		return "", false
	}
	for _, o := range q.Options {
		if o.ID == optionID {
			return o.Value, true
		}
	}
	return "", false
}
