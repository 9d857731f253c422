package catalog

import "fmt"

// LoadError reports a failed call to the catalog API: transport failure,
// non-2xx status, undecodable body or a malformed question set.
type LoadError struct {
	Op  string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
