// internal/core/query_params.go
package core

import (
	"fmt"
	"net/url"
	"strconv"
)

// Default and limit constants for paginated list endpoints
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// PageOptions holds parsed pagination query parameters for list endpoints.
type PageOptions struct {
	Limit  int
	Offset int
}

// ParsePageOptions extracts limit/offset pagination options from query
// parameters. Returns the parsed options and any validation error.
func ParsePageOptions(queryParams url.Values) (*PageOptions, error) {
	opts := &PageOptions{
		Limit:  DefaultPageLimit,
		Offset: 0,
	}

	if limitStr := queryParams.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, fmt.Errorf("invalid 'limit' parameter: must be an integer")
		}
		if limit < 1 {
			return nil, fmt.Errorf("invalid 'limit' parameter: must be at least 1")
		}
		if limit > MaxPageLimit {
			return nil, fmt.Errorf("invalid 'limit' parameter: maximum is %d", MaxPageLimit)
		}
		opts.Limit = limit
	}

	if offsetStr := queryParams.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, fmt.Errorf("invalid 'offset' parameter: must be an integer")
		}
		if offset < 0 {
			return nil, fmt.Errorf("invalid 'offset' parameter: must be non-negative")
		}
		opts.Offset = offset
	}

	return opts, nil
}
