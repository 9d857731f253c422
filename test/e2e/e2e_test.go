//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/quiz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBaseURL = "http://localhost:8080"
	questionCount  = 3
)

var (
	baseURL   string
	moduleIDs []string

	playerToken string
	quizID      string
	total       int
)

// envelope mirrors response.Response with a typed data field.
type envelope[T any] struct {
	Data  T `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	for _, id := range strings.Split(os.Getenv("E2E_MODULE_IDS"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			moduleIDs = append(moduleIDs, id)
		}
	}
	if len(moduleIDs) == 0 {
		fmt.Println("E2E_MODULE_IDS is not set; it must name catalog modules that have questions")
		os.Exit(0)
	}

	os.Exit(m.Run())
}

func TestE2EQuizFlow(t *testing.T) {
	t.Run("Health", func(t *testing.T) {
		resp, err := get("/health", "")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("GuestToken", func(t *testing.T) {
		resp, err := post("/api/v1/auth/guest", nil, "")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode, readBody(resp))

		var body envelope[struct {
			Token string `json:"token"`
		}]
		decodeJSON(t, resp, &body)
		playerToken = body.Data.Token
		require.NotEmpty(t, playerToken)
	})

	t.Run("RejectsMissingToken", func(t *testing.T) {
		resp, err := post("/api/v1/quizzes", model.CreateQuizRequest{ModuleIDs: moduleIDs, Count: 1}, "")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("CreateQuiz", func(t *testing.T) {
		resp, err := post("/api/v1/quizzes", model.CreateQuizRequest{
			ModuleIDs: moduleIDs,
			Count:     questionCount,
		}, playerToken)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode, readBody(resp))

		var body envelope[quiz.Snapshot]
		decodeJSON(t, resp, &body)
		snap := body.Data
		quizID = snap.ID.String()
		total = snap.Total

		require.Positive(t, total)
		assert.LessOrEqual(t, total, questionCount)
		assert.Equal(t, 0, snap.Index)
		assert.Equal(t, questionCount*quiz.DefaultSecondsPerQuestion, snap.DurationSeconds)
		assert.False(t, snap.Finalized)
		assert.Nil(t, snap.Score, "score stays hidden while running")
	})

	t.Run("SubmitIncompleteRejected", func(t *testing.T) {
		resp, err := post("/api/v1/quizzes/"+quizID+"/submit", nil, playerToken)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("StreamPing", func(t *testing.T) {
		u, err := url.Parse(baseURL)
		require.NoError(t, err)
		u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
		u.Path = "/ws/v1/quizzes/" + quizID + "/stream"
		u.RawQuery = url.Values{"token": {playerToken}}.Encode()

		conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteJSON(map[string]string{"action": "ping"}))

		deadline := time.Now().Add(5 * time.Second)
		require.NoError(t, conn.SetReadDeadline(deadline))
		for {
			var msg map[string]any
			require.NoError(t, conn.ReadJSON(&msg))
			if msg["event"] == "pong" {
				break
			}
		}
	})

	t.Run("AnswerEveryItem", func(t *testing.T) {
		for i := 0; i < total; i++ {
			resp, err := post(fmt.Sprintf("/api/v1/quizzes/%s/goto", quizID), model.GoToRequest{Index: &i}, playerToken)
			require.NoError(t, err)
			var body envelope[quiz.Snapshot]
			decodeJSON(t, resp, &body)
			resp.Body.Close()
			require.Equal(t, i, body.Data.Index)

			idx := i
			resp, err = post(fmt.Sprintf("/api/v1/quizzes/%s/answers", quizID), model.SelectAnswerRequest{
				ItemIndex: &idx,
				OptionID:  body.Data.Current.Options[0].ID,
			}, playerToken)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode, readBody(resp))
			resp.Body.Close()
		}
	})

	t.Run("Submit", func(t *testing.T) {
		resp, err := post("/api/v1/quizzes/"+quizID+"/submit", nil, playerToken)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, readBody(resp))

		var body envelope[quiz.Snapshot]
		decodeJSON(t, resp, &body)
		assert.True(t, body.Data.Finalized)
		assert.Equal(t, model.FinalizeSubmitted, body.Data.FinalizeReason)
		require.NotNil(t, body.Data.Score)
		assert.Equal(t, total, body.Data.Score.Total)
	})

	t.Run("Review", func(t *testing.T) {
		resp, err := get("/api/v1/quizzes/"+quizID+"/review", playerToken)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, readBody(resp))

		var body envelope[struct {
			Items []quiz.ReviewItem `json:"items"`
		}]
		decodeJSON(t, resp, &body)
		assert.Len(t, body.Data.Items, total)
		for _, it := range body.Data.Items {
			assert.True(t, it.Answered)
			assert.NotEmpty(t, it.CorrectOptionID)
		}
	})

	t.Run("AttemptRecorded", func(t *testing.T) {
		// The attempt worker flushes in batches, so poll for a while.
		assert.Eventually(t, func() bool {
			resp, err := get("/api/v1/attempts", playerToken)
			if err != nil {
				return false
			}
			defer resp.Body.Close()

			var body envelope[struct {
				Attempts []model.Attempt `json:"attempts"`
			}]
			if json.NewDecoder(resp.Body).Decode(&body) != nil {
				return false
			}
			for _, a := range body.Data.Attempts {
				if a.SessionID.String() == quizID {
					return true
				}
			}
			return false
		}, 15*time.Second, 500*time.Millisecond)
	})

	t.Run("DeleteQuiz", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, baseURL+"/api/v1/quizzes/"+quizID, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+playerToken)
		resp, err := httpClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		resp, err = get("/api/v1/quizzes/"+quizID, playerToken)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

// Helpers

var httpClient = &http.Client{Timeout: 10 * time.Second}

func post(path string, body interface{}, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return httpClient.Do(req)
}

func get(path string, token string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return httpClient.Do(req)
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("json decode: %v", err)
	}
}
