package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mwhitford/reddit-profiler/models"
)

// Reddit exports can carry very long selftext bodies on a single line.
const maxLineBytes = 16 * 1024 * 1024

// ParsedFile is the output of parsing one JSONL file: the usable records
// plus a diagnostic summary of everything that was not usable.
type ParsedFile struct {
	Records []models.Record
	Summary models.ParseSummary
}

// ParseFile reads a line-delimited JSON file and returns the typed records.
// Each line is parsed independently; malformed lines and lines lacking both
// a subreddit field and an author are counted as skipped, never fatal. A
// file that yields zero parsed lines fails with EmptyOrUnparsableError.
func ParseFile(path string, log *logrus.Logger) (*ParsedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	result := &ParsedFile{Summary: models.ParseSummary{Path: path}}
	now := time.Now().Unix()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			result.Summary.Skipped++
			continue
		}

		rec, ok := classify(obj, now)
		if !ok {
			result.Summary.Skipped++
			continue
		}

		if rec.Kind == models.KindAmbiguous {
			result.Summary.Ambiguous++
			continue
		}
		if rec.Future {
			result.Summary.Future++
		}

		result.Records = append(result.Records, rec)
		result.Summary.Parsed++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if result.Summary.Parsed == 0 {
		return nil, &EmptyOrUnparsableError{Path: path, Skipped: result.Summary.Skipped}
	}

	log.WithFields(logrus.Fields{
		"path":      path,
		"parsed":    result.Summary.Parsed,
		"skipped":   result.Summary.Skipped,
		"ambiguous": result.Summary.Ambiguous,
		"future":    result.Summary.Future,
	}).Debug("Parsed JSONL file")

	return result, nil
}

// classify builds a typed record from a generic JSON object. A record is a
// post if it has title or is_self, a comment if it has body and link_id;
// matching neither or both makes it ambiguous. Returns ok=false when the
// line lacks both a subreddit field and an author.
func classify(obj map[string]any, now int64) (models.Record, bool) {
	subreddit := extractSubreddit(obj)
	author, hasAuthor := stringField(obj, "author")
	if subreddit == "" && !hasAuthor {
		return models.Record{}, false
	}

	created, createdOK := extractTimestamp(obj)
	if !createdOK || created < 0 {
		return models.Record{}, false
	}

	rec := models.Record{
		Subreddit:  subreddit,
		Author:     author,
		CreatedUTC: created,
		Future:     created > now,
	}

	_, hasTitle := obj["title"]
	_, hasIsSelf := obj["is_self"]
	_, hasBody := obj["body"]
	_, hasLinkID := obj["link_id"]

	isPost := hasTitle || hasIsSelf
	isComment := hasBody && hasLinkID

	switch {
	case isPost && !isComment:
		rec.Kind = models.KindPost
		rec.Title, _ = stringField(obj, "title")
		if v, ok := obj["is_self"].(bool); ok {
			rec.IsSelf = v
		}
	case isComment && !isPost:
		rec.Kind = models.KindComment
		rec.Body, _ = stringField(obj, "body")
		rec.LinkID, _ = stringField(obj, "link_id")
	default:
		rec.Kind = models.KindAmbiguous
	}

	return rec, true
}

// extractSubreddit prefers the plain subreddit field, falling back to the
// r/-prefixed variant. Comparison value is always lower case.
func extractSubreddit(obj map[string]any) string {
	if s, ok := stringField(obj, "subreddit"); ok && s != "" {
		return strings.ToLower(s)
	}
	if s, ok := stringField(obj, "subreddit_name_prefixed"); ok && s != "" {
		return strings.ToLower(strings.TrimPrefix(s, "r/"))
	}
	return ""
}

// extractTimestamp accepts created_utc (or created / timestamp fallbacks) as
// a JSON number, a numeric string, or an ISO-8601 string.
func extractTimestamp(obj map[string]any) (int64, bool) {
	for _, key := range []string{"created_utc", "created", "timestamp"} {
		v, ok := obj[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			return int64(t), true
		case string:
			if n, err := strconv.ParseFloat(t, 64); err == nil {
				return int64(n), true
			}
			if ts, err := time.Parse(time.RFC3339, t); err == nil {
				return ts.Unix(), true
			}
			if ts, err := time.Parse("2006-01-02T15:04:05", strings.TrimSuffix(t, "Z")); err == nil {
				return ts.Unix(), true
			}
		}
	}
	return 0, false
}

func stringField(obj map[string]any, key string) (string, bool) {
	v, ok := obj[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
