package model

// CatalogEntry is a course, semester, subject or module as served by the
// catalog API. IDs are opaque; numeric IDs are carried as decimal strings.
type CatalogEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Course is the top level of the catalog.
type Course = CatalogEntry

// Semester belongs to a course.
type Semester = CatalogEntry

// Subject belongs to a semester.
type Subject = CatalogEntry

// Module belongs to a subject and owns questions.
type Module = CatalogEntry

// ModuleNamesQuery binds ?ids=1,2,3 for the module name lookup.
type ModuleNamesQuery struct {
	IDs string `form:"ids" binding:"required,csv_ids"`
}
