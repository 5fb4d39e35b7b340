package stats

import (
	"fmt"
	"strings"

	"github.com/mwhitford/reddit-profiler/models"
)

const (
	minOverlapLists = 2
	maxOverlapLists = 5
)

// InvalidFileCountError means the overlap request was outside the 2-5 list
// bound.
type InvalidFileCountError struct {
	Count int
}

func (e *InvalidFileCountError) Error() string {
	return fmt.Sprintf("overlap requires between %d and %d username lists, got %d", minOverlapLists, maxOverlapLists, e.Count)
}

// Overlap computes the case-insensitive intersection of 2-5 username lists
// by folding a membership set across the inputs, O(total usernames). The
// result preserves the casing and order of the first list.
func Overlap(lists []*models.UsernameList) (*models.OverlapResult, error) {
	if len(lists) < minOverlapLists || len(lists) > maxOverlapLists {
		return nil, &InvalidFileCountError{Count: len(lists)}
	}

	survivors := make(map[string]struct{}, len(lists[0].Names))
	for _, name := range lists[0].Names {
		survivors[strings.ToLower(name)] = struct{}{}
	}

	for _, list := range lists[1:] {
		present := make(map[string]struct{}, len(list.Names))
		for _, name := range list.Names {
			present[strings.ToLower(name)] = struct{}{}
		}
		for lower := range survivors {
			if _, ok := present[lower]; !ok {
				delete(survivors, lower)
			}
		}
	}

	result := &models.OverlapResult{Entries: make([]models.OverlapEntry, 0, len(survivors))}
	for _, name := range lists[0].Names {
		if _, ok := survivors[strings.ToLower(name)]; ok {
			result.Entries = append(result.Entries, models.OverlapEntry{Username: name})
		}
	}
	return result, nil
}
