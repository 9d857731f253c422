package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/catalog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

// CatalogHandler serves the browsing hierarchy used to pick quiz modules.
type CatalogHandler struct {
	catalogService *service.CatalogService
	log            zerolog.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogService *service.CatalogService, log zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		log:            logger.Component(log, "catalog_handler"),
	}
}

// ListCourses godoc
// GET /api/v1/catalog/courses
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	courses, err := h.catalogService.Courses(c.Request.Context())
	h.respond(c, "courses", courses, err)
}

// ListSemesters godoc
// GET /api/v1/catalog/courses/:id/semesters
func (h *CatalogHandler) ListSemesters(c *gin.Context) {
	h.byParent(c, "semesters", h.catalogService.Semesters)
}

// ListSubjects godoc
// GET /api/v1/catalog/semesters/:id/subjects
func (h *CatalogHandler) ListSubjects(c *gin.Context) {
	h.byParent(c, "subjects", h.catalogService.Subjects)
}

// ListModules godoc
// GET /api/v1/catalog/subjects/:id/modules
func (h *CatalogHandler) ListModules(c *gin.Context) {
	h.byParent(c, "modules", h.catalogService.Modules)
}

// ListModuleNames godoc
// GET /api/v1/catalog/modules/names?ids=1,2
// Resolves module ids to display names for the quiz header.
func (h *CatalogHandler) ListModuleNames(c *gin.Context) {
	var q model.ModuleNamesQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	modules, err := h.catalogService.ModuleNames(c.Request.Context(), validator.SplitCSVIDs(q.IDs))
	h.respond(c, "modules", modules, err)
}

func (h *CatalogHandler) byParent(
	c *gin.Context,
	key string,
	list func(ctx context.Context, parentID string) ([]model.CatalogEntry, error),
) {
	parentID := strings.TrimSpace(c.Param("id"))
	if parentID == "" || len(parentID) > 64 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	entries, err := list(c.Request.Context(), parentID)
	h.respond(c, key, entries, err)
}

func (h *CatalogHandler) respond(c *gin.Context, key string, entries []model.CatalogEntry, err error) {
	if err != nil {
		var loadErr *catalog.LoadError
		if errors.As(err, &loadErr) {
			h.log.Warn().Err(err).Msg("Catalog unavailable")
			response.FailWithMessage(c, http.StatusBadGateway, response.ErrLoadFailed,
				"Failed to load the catalog. Please try again.")
			return
		}
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{key: entries})
}
