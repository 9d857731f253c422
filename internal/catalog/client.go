package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stemsi/exstem-quiz/internal/model"
)

// maxBodyBytes caps how much of a catalog response is read.
const maxBodyBytes = 8 << 20

// Client talks to the external catalog API that serves courses, semesters,
// subjects, modules and module questions.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New creates a catalog client rooted at baseURL.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse catalog url: %q is not absolute", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// ─── Browsing ───────────────────────────────────────────────────────

func (c *Client) ListCourses(ctx context.Context) ([]model.Course, error) {
	return c.listEntries(ctx, "list courses", "courses", nil)
}

func (c *Client) ListSemesters(ctx context.Context, courseID string) ([]model.Semester, error) {
	return c.listEntries(ctx, "list semesters", "courses/"+url.PathEscape(courseID)+"/semesters", nil)
}

func (c *Client) ListSubjects(ctx context.Context, semesterID string) ([]model.Subject, error) {
	return c.listEntries(ctx, "list subjects", "semesters/"+url.PathEscape(semesterID)+"/subjects", nil)
}

func (c *Client) ListModules(ctx context.Context, subjectID string) ([]model.Module, error) {
	return c.listEntries(ctx, "list modules", "subjects/"+url.PathEscape(subjectID)+"/modules", nil)
}

// ListModuleNames resolves module ids to display names. It is informational
// and never used to build a session.
func (c *Client) ListModuleNames(ctx context.Context, moduleIDs []string) ([]model.Module, error) {
	q := url.Values{}
	q.Set("moduleIds", strings.Join(moduleIDs, ","))
	return c.listEntries(ctx, "list module names", "module-names", q)
}

type rawEntry struct {
	ID          flexID `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (c *Client) listEntries(ctx context.Context, op, path string, q url.Values) ([]model.CatalogEntry, error) {
	var raw []rawEntry
	if err := c.getJSON(ctx, op, path, q, &raw); err != nil {
		return nil, err
	}
	out := make([]model.CatalogEntry, 0, len(raw))
	for _, r := range raw {
		out = append(out, model.CatalogEntry{
			ID:          string(r.ID),
			Name:        r.Name,
			Description: r.Description,
		})
	}
	return out, nil
}

// getJSON issues a GET and decodes a JSON body into dst. Every failure is
// returned as a *LoadError.
func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, dst any) error {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	if q != nil {
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &LoadError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return &LoadError{Op: op, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return &LoadError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	if res.StatusCode/100 != 2 {
		return &LoadError{Op: op, Err: fmt.Errorf("unexpected status %s", res.Status)}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &LoadError{Op: op, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

// flexID accepts a JSON string or number and keeps it as a string.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}
