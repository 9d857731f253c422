package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// CatalogBrowser is the read side of the external catalog API.
type CatalogBrowser interface {
	ListCourses(ctx context.Context) ([]model.Course, error)
	ListSemesters(ctx context.Context, courseID string) ([]model.Semester, error)
	ListSubjects(ctx context.Context, semesterID string) ([]model.Subject, error)
	ListModules(ctx context.Context, subjectID string) ([]model.Module, error)
	ListModuleNames(ctx context.Context, moduleIDs []string) ([]model.Module, error)
}

// CatalogService serves the course → semester → subject → module hierarchy
// with a Redis read-through cache in front of the catalog API.
type CatalogService struct {
	browser CatalogBrowser
	rdb     *redis.Client
	ttl     time.Duration
	log     zerolog.Logger
}

// NewCatalogService creates a new CatalogService. A nil rdb or a zero ttl
// disables caching.
func NewCatalogService(browser CatalogBrowser, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		browser: browser,
		rdb:     rdb,
		ttl:     ttl,
		log:     logger.Component(log, "catalog_service"),
	}
}

func (s *CatalogService) Courses(ctx context.Context) ([]model.Course, error) {
	return s.cached(ctx, config.CacheKey.CoursesKey(), s.browser.ListCourses)
}

func (s *CatalogService) Semesters(ctx context.Context, courseID string) ([]model.Semester, error) {
	return s.cached(ctx, config.CacheKey.SemestersKey(courseID), func(ctx context.Context) ([]model.Semester, error) {
		return s.browser.ListSemesters(ctx, courseID)
	})
}

func (s *CatalogService) Subjects(ctx context.Context, semesterID string) ([]model.Subject, error) {
	return s.cached(ctx, config.CacheKey.SubjectsKey(semesterID), func(ctx context.Context) ([]model.Subject, error) {
		return s.browser.ListSubjects(ctx, semesterID)
	})
}

func (s *CatalogService) Modules(ctx context.Context, subjectID string) ([]model.Module, error) {
	return s.cached(ctx, config.CacheKey.ModulesKey(subjectID), func(ctx context.Context) ([]model.Module, error) {
		return s.browser.ListModules(ctx, subjectID)
	})
}

func (s *CatalogService) ModuleNames(ctx context.Context, moduleIDs []string) ([]model.Module, error) {
	return s.cached(ctx, config.CacheKey.ModuleNamesKey(moduleIDs), func(ctx context.Context) ([]model.Module, error) {
		return s.browser.ListModuleNames(ctx, moduleIDs)
	})
}

// cached returns the entries stored under key, loading and storing them on
// a miss. Redis failures degrade to a direct load.
func (s *CatalogService) cached(
	ctx context.Context,
	key string,
	load func(context.Context) ([]model.CatalogEntry, error),
) ([]model.CatalogEntry, error) {
	if s.rdb == nil || s.ttl <= 0 {
		return s.loadNonNil(ctx, load)
	}

	data, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entries []model.CatalogEntry
		if err := json.Unmarshal(data, &entries); err == nil {
			return entries, nil
		}
		s.log.Warn().Str("key", key).Msg("Corrupt cache entry, reloading")
	case !errors.Is(err, redis.Nil):
		s.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	}

	entries, err := s.loadNonNil(ctx, load)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(entries); err == nil {
		if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		}
	}
	return entries, nil
}

func (s *CatalogService) loadNonNil(ctx context.Context, load func(context.Context) ([]model.CatalogEntry, error)) ([]model.CatalogEntry, error) {
	entries, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.CatalogEntry{}
	}
	return entries, nil
}
