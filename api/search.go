package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultSearchBaseURL = "https://arctic-shift.photon-reddit.com"

// ActivitySearch estimates account activity bounds from a public archive.
// It covers accounts the profile endpoint cannot resolve: a deleted account
// still has archived posts and comments, and their earliest timestamp bounds
// the account's creation date.
type ActivitySearch interface {
	EarliestActivity(ctx context.Context, username string) (int64, error)
	LatestActivity(ctx context.Context, username string) (int64, error)
}

// ArchiveSearchAPI queries the arctic-shift archive's posts and comments
// search endpoints. A zero return with a nil error means the archive holds
// no activity for the username.
type ArchiveSearchAPI struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	log        *logrus.Logger
}

// NewArchiveSearchAPI creates an archive search client.
func NewArchiveSearchAPI(userAgent string, log *logrus.Logger) *ArchiveSearchAPI {
	return &ArchiveSearchAPI{
		baseURL:    defaultSearchBaseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log,
	}
}

// EarliestActivity returns the oldest archived timestamp across the
// username's posts and comments.
func (a *ArchiveSearchAPI) EarliestActivity(ctx context.Context, username string) (int64, error) {
	return a.boundary(ctx, username, "asc")
}

// LatestActivity returns the newest archived timestamp across the
// username's posts and comments.
func (a *ArchiveSearchAPI) LatestActivity(ctx context.Context, username string) (int64, error) {
	return a.boundary(ctx, username, "desc")
}

// boundary asks both record kinds for their first result under the given
// sort order and folds the answers. One failing endpoint is tolerated as
// long as the other produced a timestamp.
func (a *ArchiveSearchAPI) boundary(ctx context.Context, username, sort string) (int64, error) {
	var found []int64
	var lastErr error

	for _, kind := range []string{"posts", "comments"} {
		ts, err := a.firstResult(ctx, kind, username, sort)
		if err != nil {
			lastErr = err
			continue
		}
		if ts > 0 {
			found = append(found, ts)
		}
	}

	if len(found) == 0 {
		if lastErr != nil {
			return 0, &TransientError{Err: lastErr}
		}
		return 0, nil
	}

	result := found[0]
	for _, ts := range found[1:] {
		if (sort == "asc" && ts < result) || (sort == "desc" && ts > result) {
			result = ts
		}
	}
	return result, nil
}

func (a *ArchiveSearchAPI) firstResult(ctx context.Context, kind, username, sort string) (int64, error) {
	endpoint := fmt.Sprintf("%s/api/%s/search?author=%s&sort=%s&limit=1",
		a.baseURL, kind, url.QueryEscape(username), sort)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.log.WithFields(logrus.Fields{
			"username":    username,
			"kind":        kind,
			"status_code": resp.StatusCode,
		}).Warn("Unexpected archive search response")
		return 0, fmt.Errorf("archive search failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read archive response: %w", err)
	}

	// The archive wraps results in {"data": [...]}; tolerate a bare array.
	var wrapped struct {
		Data []map[string]any `json:"data"`
	}
	var items []map[string]any
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
		items = wrapped.Data
	} else if err := json.Unmarshal(body, &items); err != nil {
		return 0, fmt.Errorf("failed to decode archive response: %w", err)
	}

	if len(items) == 0 {
		return 0, nil
	}
	for _, key := range []string{"created_utc", "created", "timestamp"} {
		if ts, ok := archiveTimestamp(items[0][key]); ok {
			return ts, nil
		}
	}
	return 0, nil
}

// archiveTimestamp accepts an epoch number, a numeric string, or an
// ISO-8601 string.
func archiveTimestamp(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if t > 0 {
			return int64(t), true
		}
	case string:
		if n, err := strconv.ParseFloat(t, 64); err == nil && n > 0 {
			return int64(n), true
		}
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts.Unix(), true
		}
		if ts, err := time.Parse("2006-01-02T15:04:05", strings.TrimSuffix(t, "Z")); err == nil {
			return ts.Unix(), true
		}
	}
	return 0, false
}
