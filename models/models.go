package models

import (
	"time"
)

// DeletedAuthor is the sentinel Reddit uses for removed accounts.
const DeletedAuthor = "[deleted]"

// RecordKind classifies a parsed line as a post or a comment.
type RecordKind string

const (
	KindPost      RecordKind = "post"
	KindComment   RecordKind = "comment"
	KindAmbiguous RecordKind = "ambiguous"
)

// AnalysisMode selects which entity a file pair is anchored on.
type AnalysisMode string

const (
	ModeSubreddit AnalysisMode = "subreddit"
	ModeUser      AnalysisMode = "user"
)

// Record is one post or comment from a JSONL export. Subreddit is
// lower-cased with any "r/" prefix stripped.
type Record struct {
	Kind       RecordKind `json:"kind"`
	Subreddit  string     `json:"subreddit"`
	Author     string     `json:"author"`
	CreatedUTC int64      `json:"created_utc"`

	// Post fields
	Title  string `json:"title,omitempty"`
	IsSelf bool   `json:"is_self,omitempty"`

	// Comment fields
	Body   string `json:"body,omitempty"`
	LinkID string `json:"link_id,omitempty"`

	// Future marks a timestamp past parse time; tolerated, never rejected.
	Future bool `json:"future,omitempty"`
}

// ParseSummary is the per-file diagnostic report from the parser.
type ParseSummary struct {
	Path      string `json:"path"`
	Parsed    int    `json:"parsed"`
	Skipped   int    `json:"skipped"`
	Ambiguous int    `json:"ambiguous"`
	Future    int    `json:"future"`
}

// RecordSet is the merged, validated output of one file pair.
type RecordSet struct {
	Mode    AnalysisMode   `json:"mode"`
	Anchor  string         `json:"anchor"`
	Records []Record       `json:"-"`
	Files   []ParseSummary `json:"files"`
}

// ActivityDay is one cell of the zero-filled yearly calendar.
type ActivityDay struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// HeatmapCell is one cell of the dense 7x24 posting-hour grid.
// Weekday runs Monday=0 through Sunday=6.
type HeatmapCell struct {
	Weekday int `json:"weekday"`
	Hour    int `json:"hour"`
	Count   int `json:"count"`
}

// ContributorRank is one row of the contributor frequency table.
type ContributorRank struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SummaryStats holds the exploratory statistics for one analysis run.
// Rate fields are nil when the underlying span is empty (undefined, not zero).
type SummaryStats struct {
	TotalRecords         int      `json:"total_records"`
	DistinctContributors int      `json:"distinct_contributors"`
	EarliestDate         string   `json:"earliest_date,omitempty"`
	LatestDate           string   `json:"latest_date,omitempty"`
	PostsPerDay          *float64 `json:"posts_per_day"`
	PostsPerHour         *float64 `json:"posts_per_hour"`
	AvgPerContributor    *float64 `json:"avg_per_contributor"`
}

// AccountStatus is the resolution state of an external account lookup.
type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusSuspended AccountStatus = "suspended"
	StatusDeleted   AccountStatus = "deleted"
	StatusNotFound  AccountStatus = "not_found"
	StatusError     AccountStatus = "error"
)

// Terminal reports whether the status will never change on re-lookup.
func (s AccountStatus) Terminal() bool {
	return s == StatusDeleted || s == StatusNotFound
}

// Resolved reports whether the status is anything other than a transient
// lookup failure.
func (s AccountStatus) Resolved() bool {
	return s != StatusError && s != ""
}

// CreationSource tags how a record's creation date was obtained: from the
// profile endpoint itself, estimated from the earliest archived activity,
// or not obtained at all.
type CreationSource string

const (
	SourceTrue      CreationSource = "true"
	SourceEstimated CreationSource = "estimated"
	SourceUnknown   CreationSource = "unknown"
)

// AccountRecord is the cached result of one username lookup. CreatedUTC,
// CreatedYear and LastActivityUTC are zero when unknown.
type AccountRecord struct {
	Username        string         `json:"username"`
	CreatedUTC      int64          `json:"created_utc,omitempty"`
	CreatedYear     int            `json:"created_year,omitempty"`
	LastActivityUTC int64          `json:"last_activity_utc,omitempty"`
	Status          AccountStatus  `json:"status"`
	Source          CreationSource `json:"source"`
}

// NewAccountRecord fills CreatedYear from the creation timestamp. A known
// timestamp is a true creation date; estimated dates are tagged by the
// caller that estimated them.
func NewAccountRecord(username string, createdUTC int64, status AccountStatus) AccountRecord {
	rec := AccountRecord{
		Username:   username,
		CreatedUTC: createdUTC,
		Status:     status,
		Source:     SourceUnknown,
	}
	if createdUTC > 0 {
		rec.CreatedYear = time.Unix(createdUTC, 0).UTC().Year()
		rec.Source = SourceTrue
	}
	return rec
}

// UsernameList is a deduplicated username file. Names keeps the original
// casing in first-seen order; comparison is always case-insensitive.
type UsernameList struct {
	Path  string   `json:"path"`
	Names []string `json:"names"`
}

// OverlapEntry is one username present in every input list, optionally
// enriched with its account record after creation-year lookups.
type OverlapEntry struct {
	Username string         `json:"username"`
	Account  *AccountRecord `json:"account,omitempty"`
}

// OverlapResult is the intersection of 2-5 username lists.
type OverlapResult struct {
	Entries []OverlapEntry `json:"entries"`
}

// PageSummary reports how one pipeline page was resolved.
type PageSummary struct {
	SkipListed int `json:"skip_listed"`
	CacheHits  int `json:"cache_hits"`
	Fetched    int `json:"fetched"`
	Errors     int `json:"errors"`
}

// PageProgress is delivered to the progress callback after each page.
type PageProgress struct {
	Page       int         `json:"page"`
	TotalPages int         `json:"total_pages"`
	Summary    PageSummary `json:"summary"`
}
