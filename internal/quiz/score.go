package quiz

import "math"

// Score summarizes a session's correctness.
type Score struct {
	Correct         int `json:"correct"`
	Total           int `json:"total"`
	AccuracyPercent int `json:"accuracy_percent"`
}

// ScoreItems counts items whose selection equals the recorded answer.
// Unanswered items count as incorrect. It has no side effects.
func ScoreItems(items []Item) Score {
	correct := 0
	for _, it := range items {
		if it.Correct() {
			correct++
		}
	}

	total := len(items)
	accuracy := 0
	if total > 0 {
		accuracy = int(math.Round(100 * float64(correct) / float64(total)))
	}

	return Score{
		Correct:         correct,
		Total:           total,
		AccuracyPercent: accuracy,
	}
}

// ReviewItem is the result-screen view of one item.
type ReviewItem struct {
	Index            int    `json:"index"`
	QuestionID       string `json:"question_id"`
	Prompt           string `json:"question"`
	SelectedOptionID string `json:"selected_option_id,omitempty"`
	SelectedValue    string `json:"selected_value,omitempty"`
	CorrectOptionID  string `json:"correct_option_id"`
	CorrectValue     string `json:"correct_value,omitempty"`
	Correct          bool   `json:"correct"`
	Answered         bool   `json:"answered"`
	Explanation      string `json:"explanation,omitempty"`
}

// ReviewItems pairs every item with the values of its selected and correct
// options. Options missing from the list leave the value empty.
func ReviewItems(items []Item) []ReviewItem {
	out := make([]ReviewItem, len(items))
	for i, it := range items {
		selected, _ := it.Question.OptionValue(it.SelectedOptionID)
		correct, _ := it.Question.OptionValue(it.Question.Answer)
		out[i] = ReviewItem{
			Index:            i,
			QuestionID:       it.Question.ID,
			Prompt:           it.Question.Prompt,
			SelectedOptionID: it.SelectedOptionID,
			SelectedValue:    selected,
			CorrectOptionID:  it.Question.Answer,
			CorrectValue:     correct,
			Correct:          it.Correct(),
			Answered:         it.Answered(),
			Explanation:      it.Question.Explanation,
		}
	}
	return out
}
