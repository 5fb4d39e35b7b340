package ingest

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mwhitford/reddit-profiler/models"
)

// ValidatePair confirms a posts/comments file pair describes a single
// coherent entity and merges it into a mode-tagged RecordSet. In subreddit
// mode the anchor is the one subreddit shared by every record; in user mode
// it is the one author. The mode is chosen by the caller, never inferred.
//
// Checks run in order: both files non-empty, file roles match their record
// kinds, then the single-entity check for the requested mode.
func ValidatePair(posts, comments *ParsedFile, mode models.AnalysisMode, log *logrus.Logger) (*models.RecordSet, error) {
	if len(posts.Records) == 0 {
		return nil, &EmptyOrUnparsableError{Path: posts.Summary.Path, Skipped: posts.Summary.Skipped}
	}
	if len(comments.Records) == 0 {
		return nil, &EmptyOrUnparsableError{Path: comments.Summary.Path, Skipped: comments.Summary.Skipped}
	}

	if err := checkRole(posts, models.KindPost); err != nil {
		return nil, err
	}
	if err := checkRole(comments, models.KindComment); err != nil {
		return nil, err
	}

	merged := make([]models.Record, 0, len(posts.Records)+len(comments.Records))
	merged = append(merged, posts.Records...)
	merged = append(merged, comments.Records...)

	var anchor string
	switch mode {
	case models.ModeSubreddit:
		values := distinctValues(merged, func(r models.Record) string { return r.Subreddit })
		if len(values) != 1 {
			return nil, &SubredditMismatchError{Values: values}
		}
		anchor = values[0]
	case models.ModeUser:
		values := distinctAuthors(merged)
		if len(values) != 1 {
			return nil, &UserMismatchError{Values: values}
		}
		anchor = strings.ToLower(values[0])
	}

	log.WithFields(logrus.Fields{
		"mode":    mode,
		"anchor":  anchor,
		"records": len(merged),
	}).Info("Validated file pair")

	return &models.RecordSet{
		Mode:    mode,
		Anchor:  anchor,
		Records: merged,
		Files:   []models.ParseSummary{posts.Summary, comments.Summary},
	}, nil
}

func checkRole(file *ParsedFile, want models.RecordKind) error {
	for _, rec := range file.Records {
		if rec.Kind != want {
			return &RoleMismatchError{Path: file.Summary.Path, Want: want, Got: rec.Kind}
		}
	}
	return nil
}

// distinctAuthors returns one entry per distinct author with the first-seen
// casing preserved, sorted case-insensitively. The deleted-author sentinel
// cannot anchor a user analysis and is excluded.
func distinctAuthors(records []models.Record) []string {
	display := make(map[string]string)
	for _, rec := range records {
		if rec.Author == "" || strings.EqualFold(rec.Author, models.DeletedAuthor) {
			continue
		}
		lower := strings.ToLower(rec.Author)
		if _, ok := display[lower]; !ok {
			display[lower] = rec.Author
		}
	}
	values := make([]string, 0, len(display))
	for _, v := range display {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		return strings.ToLower(values[i]) < strings.ToLower(values[j])
	})
	return values
}

func distinctValues(records []models.Record, key func(models.Record) string) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		v := key(rec)
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
