package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-quiz/internal/model"
)

var errNoModules = errors.New("at least one module id is required")

type rawOption struct {
	ID    flexID `json:"id"`
	Key   flexID `json:"key"`
	Value string `json:"value"`
}

type rawQuestion struct {
	ID          flexID      `json:"id"`
	Question    string      `json:"question"`
	Options     []rawOption `json:"options"`
	Answer      flexID      `json:"answer"`
	Explanation string      `json:"explanation"`
}

// ListQuestions loads at most limit questions for the given modules, in the
// order the catalog returns them. Option identifiers are normalized here:
// "id" wins, "key" is the fallback.
func (c *Client) ListQuestions(ctx context.Context, moduleIDs []string, limit int) ([]model.Question, error) {
	const op = "load questions"

	ids := make([]string, 0, len(moduleIDs))
	for _, id := range moduleIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, &LoadError{Op: op, Err: errNoModules}
	}
	if limit <= 0 {
		return nil, &LoadError{Op: op, Err: fmt.Errorf("limit must be positive, got %d", limit)}
	}

	q := url.Values{}
	q.Set("moduleIds", strings.Join(ids, ","))
	q.Set("limit", strconv.Itoa(limit))

	var raw []rawQuestion
	if err := c.getJSON(ctx, op, "module-questions", q, &raw); err != nil {
		return nil, err
	}

	if len(raw) > limit {
		raw = raw[:limit]
	}
	out := make([]model.Question, 0, len(raw))
	for i, r := range raw {
		question, err := normalizeQuestion(r)
		if err != nil {
			return nil, &LoadError{Op: op, Err: fmt.Errorf("question %d: %w", i, err)}
		}
		out = append(out, question)
	}
	return out, nil
}

func normalizeQuestion(r rawQuestion) (model.Question, error) {
	if strings.TrimSpace(r.Question) == "" {
		return model.Question{}, errors.New("empty prompt")
	}
	if len(r.Options) == 0 {
		return model.Question{}, errors.New("no options")
	}
	if r.Answer == "" {
		return model.Question{}, errors.New("missing answer")
	}

	seen := make(map[string]struct{}, len(r.Options))
	opts := make([]model.Option, 0, len(r.Options))
	for j, o := range r.Options {
		id := string(o.ID)
		if id == "" {
			id = string(o.Key)
		}
		if id == "" {
			return model.Question{}, fmt.Errorf("option %d has no id", j)
		}
		if _, dup := seen[id]; dup {
			return model.Question{}, fmt.Errorf("duplicate option id %q", id)
		}
		seen[id] = struct{}{}
		opts = append(opts, model.Option{ID: id, Value: o.Value})
	}

	return model.Question{
		ID:          string(r.ID),
		Prompt:      r.Question,
		Options:     opts,
		Answer:      string(r.Answer),
		Explanation: r.Explanation,
	}, nil
}
