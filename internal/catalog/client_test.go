package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api", 2*time.Second)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("localhost:9000", time.Second)
	require.Error(t, err)
}

func TestListQuestions_NormalizesOptionIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/module-questions", r.URL.Path)
		assert.Equal(t, "3,7", r.URL.Query().Get("moduleIds"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 11, "question": "2+2?", "options": [{"key": "a", "value": "4"}, {"key": "b", "value": "5"}], "answer": "a"},
			{"id": "q-12", "question": "$x^2$?", "options": [{"id": "x", "key": "ignored", "value": "$x$"}], "answer": "x", "explanation": "trivial"},
			{"id": 13, "question": "extra", "options": [{"id": "z", "value": "z"}], "answer": "z"}
		]`))
	})

	qs, err := c.ListQuestions(context.Background(), []string{"3", " 7 ", ""}, 2)
	require.NoError(t, err)
	require.Len(t, qs, 2, "truncated to the requested count")

	assert.Equal(t, "11", qs[0].ID)
	assert.Equal(t, "a", qs[0].Options[0].ID)
	assert.Equal(t, "b", qs[0].Options[1].ID)
	assert.Equal(t, "a", qs[0].Answer)

	assert.Equal(t, "q-12", qs[1].ID)
	assert.Equal(t, "x", qs[1].Options[0].ID, "id wins over key")
	assert.Equal(t, "$x$", qs[1].Options[0].Value)
	assert.Equal(t, "trivial", qs[1].Explanation)
}

func TestListQuestions_NumericOptionIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 1, "question": "1+1?", "options": [{"id": 1, "value": "2"}, {"id": 2, "value": "3"}], "answer": 1},
			{"id": 2, "question": "2+1?", "options": [{"key": 7, "value": "3"}, {"key": 8, "value": "4"}], "answer": 7}
		]`))
	})

	qs, err := c.ListQuestions(context.Background(), []string{"1"}, 5)
	require.NoError(t, err)
	require.Len(t, qs, 2)

	assert.Equal(t, "1", qs[0].ID)
	require.Len(t, qs[0].Options, 2)
	assert.Equal(t, "1", qs[0].Options[0].ID)
	assert.Equal(t, "2", qs[0].Options[1].ID)
	assert.Equal(t, "1", qs[0].Answer)

	assert.Equal(t, "7", qs[1].Options[0].ID, "numeric key is used when id is absent")
	assert.Equal(t, "8", qs[1].Options[1].ID)
	assert.Equal(t, "7", qs[1].Answer)
}

func TestListQuestions_EmptySet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	qs, err := c.ListQuestions(context.Background(), []string{"1"}, 5)
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestListQuestions_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`},
		{"not json", http.StatusOK, `<html>`},
		{"missing option ids", http.StatusOK, `[{"id":1,"question":"q","options":[{"value":"v"}],"answer":"a"}]`},
		{"duplicate option ids", http.StatusOK, `[{"id":1,"question":"q","options":[{"id":"a","value":"1"},{"key":"a","value":"2"}],"answer":"a"}]`},
		{"no options", http.StatusOK, `[{"id":1,"question":"q","options":[],"answer":"a"}]`},
		{"no answer", http.StatusOK, `[{"id":1,"question":"q","options":[{"id":"a","value":"1"}]}]`},
		{"no prompt", http.StatusOK, `[{"id":1,"question":" ","options":[{"id":"a","value":"1"}],"answer":"a"}]`},
		{"bad id type", http.StatusOK, `[{"id":true,"question":"q","options":[{"id":"a","value":"1"}],"answer":"a"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.ListQuestions(context.Background(), []string{"1"}, 5)
			var loadErr *LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, "load questions", loadErr.Op)
		})
	}
}

func TestListQuestions_RejectsBadInput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	var loadErr *LoadError
	_, err := c.ListQuestions(context.Background(), nil, 5)
	require.ErrorAs(t, err, &loadErr)
	_, err = c.ListQuestions(context.Background(), []string{"1"}, 0)
	require.ErrorAs(t, err, &loadErr)
}

func TestListQuestions_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, time.Second)
	require.NoError(t, err)

	_, err = c.ListQuestions(context.Background(), []string{"1"}, 5)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestBrowse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/courses":
			_, _ = w.Write([]byte(`[{"id":1,"name":"Physics","description":"Mechanics and waves"}]`))
		case "/api/courses/1/semesters":
			_, _ = w.Write([]byte(`[{"id":10,"name":"Semester 1"}]`))
		case "/api/semesters/10/subjects":
			_, _ = w.Write([]byte(`[{"id":"s-1","name":"Kinematics"}]`))
		case "/api/subjects/s-1/modules":
			_, _ = w.Write([]byte(`[{"id":5,"name":"Projectiles"},{"id":6,"name":"Circular motion"}]`))
		case "/api/module-names":
			assert.Equal(t, "5,6", r.URL.Query().Get("moduleIds"))
			_, _ = w.Write([]byte(`[{"id":5,"name":"Projectiles"}]`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	courses, err := c.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "1", courses[0].ID)
	assert.Equal(t, "Mechanics and waves", courses[0].Description)

	semesters, err := c.ListSemesters(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "10", semesters[0].ID)

	subjects, err := c.ListSubjects(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, "s-1", subjects[0].ID)

	modules, err := c.ListModules(ctx, "s-1")
	require.NoError(t, err)
	assert.Len(t, modules, 2)

	names, err := c.ListModuleNames(ctx, []string{"5", "6"})
	require.NoError(t, err)
	assert.Equal(t, "Projectiles", names[0].Name)

	_, err = c.ListSemesters(ctx, "404")
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}
