// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating request data:
// path ids, paging, date ranges and JSON bodies.
package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finflow/internal/storage"
)

const (
	maxBodyBytes    = 1 << 20
	defaultPageSize = 10
	maxPageSize     = 100
	defaultTopLimit = 5
	maxTopLimit     = 100
)

var (
	errBadID    = errors.New("invalid id")
	errBadDate  = errors.New("dates must be YYYY-MM-DD")
	errBadRange = errors.New("start must not be after end")
	errBadYear  = errors.New("invalid year")
)

// PathID parses the positive integer path value name.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", errBadID, r.PathValue(name))
	}
	return id, nil
}

// PageParams holds the paging query of a paginated listing.
type PageParams struct {
	Page    int
	Size    int
	SortBy  string
	SortDir string
}

// ParsePageParams reads page, size, sortBy and sortDir. Missing or
// malformed numbers fall back to the first page of ten; size is capped.
func ParsePageParams(query url.Values) PageParams {
	p := PageParams{
		Page:    0,
		Size:    defaultPageSize,
		SortBy:  strings.TrimSpace(query.Get("sortBy")),
		SortDir: strings.ToLower(strings.TrimSpace(query.Get("sortDir"))),
	}
	if v, err := strconv.Atoi(strings.TrimSpace(query.Get("page"))); err == nil && v >= 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(query.Get("size"))); err == nil && v > 0 {
		p.Size = min(v, maxPageSize)
	}
	if p.SortDir != "desc" {
		p.SortDir = "asc"
	}
	return p
}

// Query maps the request onto a storage page query using the resource's
// sortable fields.
func (p PageParams) Query(res resource) storage.PageQuery {
	return storage.PageQuery{
		Page: p.Page,
		Size: p.Size,
		Sort: res.sortField(p.SortBy),
		Desc: p.SortDir == "desc",
	}
}

// ParsePeriod reads the optional start and end dates of a total.
func ParsePeriod(query url.Values) (start, end string, err error) {
	start = strings.TrimSpace(query.Get("start"))
	end = strings.TrimSpace(query.Get("end"))
	for _, d := range []string{start, end} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return "", "", errBadDate
		}
	}
	if start != "" && end != "" && start > end {
		return "", "", errBadRange
	}
	return start, end, nil
}

// ParseYear reads the year parameter, defaulting to the current year.
func ParseYear(query url.Values, now time.Time) (int, error) {
	v := strings.TrimSpace(query.Get("year"))
	if v == "" {
		return now.Year(), nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1900 || y > 9999 {
		return 0, errBadYear
	}
	return y, nil
}

// ParseLimit reads the limit parameter of a top-N listing.
func ParseLimit(query url.Values) int {
	n, err := strconv.Atoi(strings.TrimSpace(query.Get("limit")))
	if err != nil || n <= 0 {
		return defaultTopLimit
	}
	return min(n, maxTopLimit)
}

// ReadDocument decodes the JSON object body of r.
func ReadDocument(w http.ResponseWriter, r *http.Request) (storage.Document, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, errors.New("empty body")
	}
	doc, err := storage.DecodeDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	return doc, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
