package ingest

import (
	"fmt"
	"strings"

	"github.com/mwhitford/reddit-profiler/models"
)

// EmptyOrUnparsableError means a file produced zero usable records.
type EmptyOrUnparsableError struct {
	Path    string
	Skipped int
}

func (e *EmptyOrUnparsableError) Error() string {
	return fmt.Sprintf("file %s is empty or unparsable (%d lines skipped)", e.Path, e.Skipped)
}

// RoleMismatchError means a file designated as posts contained comment
// records or vice versa.
type RoleMismatchError struct {
	Path string
	Want models.RecordKind
	Got  models.RecordKind
}

func (e *RoleMismatchError) Error() string {
	return fmt.Sprintf("file %s was designated as a %s file but contains %s records", e.Path, e.Want, e.Got)
}

// SubredditMismatchError means the file pair spans more than one subreddit.
type SubredditMismatchError struct {
	Values []string
}

func (e *SubredditMismatchError) Error() string {
	return fmt.Sprintf("records span multiple subreddits: %s", strings.Join(e.Values, ", "))
}

// UserMismatchError means the file pair spans more than one author.
type UserMismatchError struct {
	Values []string
}

func (e *UserMismatchError) Error() string {
	return fmt.Sprintf("records span multiple authors: %s", strings.Join(e.Values, ", "))
}

// EmptyUsernameListError means a username file held no usable entries.
type EmptyUsernameListError struct {
	Path string
}

func (e *EmptyUsernameListError) Error() string {
	return fmt.Sprintf("username list %s is empty", e.Path)
}
