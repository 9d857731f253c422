package config

import (
	"fmt"
	"strings"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CoursesKey returns the cache key for the course list
func (r *CacheKeyStruct) CoursesKey() string {
	return "catalog:courses"
}

// SemestersKey returns the cache key for a course's semesters
func (r *CacheKeyStruct) SemestersKey(courseID string) string {
	return fmt.Sprintf("catalog:course:%s:semesters", courseID)
}

// SubjectsKey returns the cache key for a semester's subjects
func (r *CacheKeyStruct) SubjectsKey(semesterID string) string {
	return fmt.Sprintf("catalog:semester:%s:subjects", semesterID)
}

// ModulesKey returns the cache key for a subject's modules
func (r *CacheKeyStruct) ModulesKey(subjectID string) string {
	return fmt.Sprintf("catalog:subject:%s:modules", subjectID)
}

// ModuleNamesKey returns the cache key for a module name lookup
func (r *CacheKeyStruct) ModuleNamesKey(moduleIDs []string) string {
	return fmt.Sprintf("catalog:module_names:%s", strings.Join(moduleIDs, ","))
}

var CacheKey = NewCacheKeyStruct()
