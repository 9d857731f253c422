package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/quiz"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

// QuizHandler exposes the quiz session over HTTP. Every call returns the
// session snapshot after the command was applied.
type QuizHandler struct {
	quizService *service.QuizService
	log         zerolog.Logger
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quizService *service.QuizService, log zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		quizService: quizService,
		log:         logger.Component(log, "quiz_handler"),
	}
}

// ReviewResponse is the result screen of a finished quiz.
type ReviewResponse struct {
	State quiz.Snapshot     `json:"state"`
	Score quiz.Score        `json:"score"`
	Items []quiz.ReviewItem `json:"items"`
}

// CreateQuiz godoc
// POST /api/v1/quizzes
// Loads the question set for the chosen modules and starts a timed session.
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	snap, err := h.quizService.Create(c.Request.Context(), claims.PlayerID, req)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, snap)
}

// GetQuiz godoc
// GET /api/v1/quizzes/:id
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	r, ok := h.runner(c)
	if !ok {
		return
	}
	snap, err := r.Snapshot(c.Request.Context())
	h.respond(c, snap, err)
}

// SelectAnswer godoc
// POST /api/v1/quizzes/:id/answers
// Records a selection. Selections on a finished quiz are ignored.
func (h *QuizHandler) SelectAnswer(c *gin.Context) {
	r, ok := h.runner(c)
	if !ok {
		return
	}

	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	snap, err := r.SelectAnswer(c.Request.Context(), *req.ItemIndex, req.OptionID)
	h.respond(c, snap, err)
}

// Prev godoc
// POST /api/v1/quizzes/:id/prev
func (h *QuizHandler) Prev(c *gin.Context) {
	r, ok := h.runner(c)
	if !ok {
		return
	}
	snap, err := r.GoPrev(c.Request.Context())
	h.respond(c, snap, err)
}

// Next godoc
// POST /api/v1/quizzes/:id/next
func (h *QuizHandler) Next(c *gin.Context) {
	r, ok := h.runner(c)
	if !ok {
		return
	}
	snap, err := r.GoNext(c.Request.Context())
	h.respond(c, snap, err)
}

// GoTo godoc
// POST /api/v1/quizzes/:id/goto
func (h *QuizHandler) GoTo(c *gin.Context) {
	r, ok := h.runner(c)
	if !ok {
		return
	}

	var req model.GoToRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	snap, err := r.GoTo(c.Request.Context(), *req.Index)
	h.respond(c, snap, err)
}

// Submit godoc
// POST /api/v1/quizzes/:id/submit
// Finalizes the quiz once every question is answered.
func (h *QuizHandler) Submit(c *gin.Context) {
	r, ok := h.runner(c)
	if !ok {
		return
	}

	snap, accepted, err := r.Submit(c.Request.Context())
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	if !accepted && !snap.Finalized {
		response.Fail(c, http.StatusConflict, response.ErrQuizIncomplete)
		return
	}

	response.Success(c, http.StatusOK, snap)
}

// Restart godoc
// POST /api/v1/quizzes/:id/restart
// Clears every answer and restarts the timer over the same questions.
func (h *QuizHandler) Restart(c *gin.Context) {
	r, ok := h.runner(c)
	if !ok {
		return
	}
	snap, err := r.Restart(c.Request.Context())
	h.respond(c, snap, err)
}

// SetAutoNext godoc
// PUT /api/v1/quizzes/:id/auto-next
func (h *QuizHandler) SetAutoNext(c *gin.Context) {
	r, ok := h.runner(c)
	if !ok {
		return
	}

	var req model.AutoNextRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	snap, err := r.SetAutoNext(c.Request.Context(), *req.Enabled)
	h.respond(c, snap, err)
}

// Review godoc
// GET /api/v1/quizzes/:id/review
// Returns the score and per-question review of a finished quiz.
func (h *QuizHandler) Review(c *gin.Context) {
	r, ok := h.runner(c)
	if !ok {
		return
	}

	snap, items, err := r.Review(c.Request.Context())
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	if !snap.Finalized {
		response.Fail(c, http.StatusConflict, response.ErrQuizNotDone)
		return
	}

	response.Success(c, http.StatusOK, ReviewResponse{
		State: snap,
		Score: *snap.Score,
		Items: items,
	})
}

// DeleteQuiz godoc
// DELETE /api/v1/quizzes/:id
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.quizService.Delete(claims.PlayerID, id); err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"id": id})
}

// runner resolves the caller's session from the :id param, writing the
// error response itself when it cannot.
func (h *QuizHandler) runner(c *gin.Context) (*quiz.Runner, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, false
	}

	r, err := h.quizService.Runner(claims.PlayerID, id)
	if err != nil {
		failWith(c, h.log, err)
		return nil, false
	}
	return r, true
}

func (h *QuizHandler) respond(c *gin.Context, snap quiz.Snapshot, err error) {
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, snap)
}
