package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/mwhitford/reddit-profiler/api"
	"github.com/mwhitford/reddit-profiler/db"
	"github.com/mwhitford/reddit-profiler/models"
)

const (
	// DefaultPageSize is the fixed pagination unit of the lookup pipeline.
	DefaultPageSize = 1000

	maxLookupAttempts    = 3
	maxRateLimitRetries  = 5
	rateLimitPause       = 10 * time.Second
	initialRetryInterval = 250 * time.Millisecond
)

// ProgressFunc receives a report after each completed page.
type ProgressFunc func(models.PageProgress)

// Pipeline pages through a username list, resolving each name from the
// skip-list, the cache, or the external lookup capability, in that order.
// Every resolution is written through the cache immediately, so partial
// progress survives an interruption.
type Pipeline struct {
	cache          *db.Cache
	lookup         api.AccountLookup
	search         api.ActivitySearch
	pageSize       int
	maxAttempts    int
	rateLimitPause time.Duration
	retryInterval  time.Duration
	log            *logrus.Logger
}

// New creates a pipeline with the default page size of 1000. search may be
// nil, in which case no activity estimation happens.
func New(cache *db.Cache, lookup api.AccountLookup, search api.ActivitySearch, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		cache:          cache,
		lookup:         lookup,
		search:         search,
		pageSize:       DefaultPageSize,
		maxAttempts:    maxLookupAttempts,
		rateLimitPause: rateLimitPause,
		retryInterval:  initialRetryInterval,
		log:            log,
	}
}

// Run resolves every username and returns their account records in input
// order. Cancellation is honored only at page boundaries: a cancelled run
// returns the records resolved so far along with the context error, and
// every record already resolved is durable in the cache.
func (p *Pipeline) Run(ctx context.Context, usernames []string, onProgress ProgressFunc) ([]models.AccountRecord, error) {
	totalPages := (len(usernames) + p.pageSize - 1) / p.pageSize
	records := make([]models.AccountRecord, 0, len(usernames))

	for page := 0; page < totalPages; page++ {
		select {
		case <-ctx.Done():
			p.log.WithFields(logrus.Fields{
				"completed_pages": page,
				"total_pages":     totalPages,
			}).Warn("Lookup pipeline cancelled")
			return records, ctx.Err()
		default:
		}

		start := page * p.pageSize
		end := start + p.pageSize
		if end > len(usernames) {
			end = len(usernames)
		}

		summary := p.runPage(ctx, usernames[start:end], &records)

		p.log.WithFields(logrus.Fields{
			"page":        page + 1,
			"total_pages": totalPages,
			"skip_listed": summary.SkipListed,
			"cache_hits":  summary.CacheHits,
			"fetched":     summary.Fetched,
			"errors":      summary.Errors,
		}).Info("Lookup page complete")

		if onProgress != nil {
			onProgress(models.PageProgress{
				Page:       page + 1,
				TotalPages: totalPages,
				Summary:    summary,
			})
		}
	}

	return records, nil
}

// runPage partitions one page into skip-listed, cache-hit and cache-miss
// names, issuing external lookups only for the misses.
func (p *Pipeline) runPage(ctx context.Context, page []string, records *[]models.AccountRecord) models.PageSummary {
	var summary models.PageSummary

	for _, username := range page {
		switch {
		case p.cache.IsSkipped(username):
			summary.SkipListed++
			if rec, ok := p.cache.Get(username); ok {
				*records = append(*records, rec)
			} else {
				// Seeded skip entries have no cached record; the name is
				// known unresolvable regardless.
				*records = append(*records, models.NewAccountRecord(username, 0, models.StatusDeleted))
			}

		case p.hasResolved(username):
			summary.CacheHits++
			rec, _ := p.cache.Get(username)
			*records = append(*records, rec)

		default:
			rec := p.resolve(ctx, username)
			if rec.Status == models.StatusError {
				summary.Errors++
			} else {
				summary.Fetched++
				p.enrich(ctx, &rec)
			}
			if err := p.cache.Put(rec); err != nil {
				p.log.WithError(err).WithField("username", username).Error("Failed to persist account record")
			}
			*records = append(*records, rec)
		}
	}

	return summary
}

// hasResolved reports whether the cache already holds a usable record.
// Records with status error are treated as misses so a later run can
// promote them to a resolved status.
func (p *Pipeline) hasResolved(username string) bool {
	rec, ok := p.cache.Get(username)
	return ok && rec.Status.Resolved()
}

// resolve issues the external lookup for one username. Transient failures
// are retried with exponential backoff up to a bounded attempt count and
// then recorded as status error; a rate-limit signal pauses the whole
// pipeline and retries the same username before advancing.
func (p *Pipeline) resolve(ctx context.Context, username string) models.AccountRecord {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.retryInterval

	attempts := 0
	rateLimitRetries := 0

	for {
		rec, err := p.lookup.Lookup(ctx, username)
		if err == nil {
			return rec
		}

		if errors.Is(err, api.ErrNotFound) {
			return models.NewAccountRecord(username, 0, models.StatusNotFound)
		}

		if errors.Is(err, api.ErrRateLimited) {
			rateLimitRetries++
			if rateLimitRetries > maxRateLimitRetries {
				p.log.WithField("username", username).Error("Giving up after repeated rate limiting")
				return models.NewAccountRecord(username, 0, models.StatusError)
			}
			p.log.WithFields(logrus.Fields{
				"username": username,
				"pause":    p.rateLimitPause.String(),
			}).Warn("Rate limited, pausing pipeline")
			time.Sleep(p.rateLimitPause)
			continue
		}

		attempts++
		if attempts >= p.maxAttempts {
			p.log.WithError(err).WithFields(logrus.Fields{
				"username": username,
				"attempts": attempts,
			}).Warn("Lookup failed after retries")
			return models.NewAccountRecord(username, 0, models.StatusError)
		}
		time.Sleep(bo.NextBackOff())
	}
}

// enrich fills the activity bounds from the archive search. An account with
// no true creation date (deleted, not found, or suspended without one) gets
// an estimated date from its earliest archived activity; every account gets
// a last-activity date when the archive knows one. Archive failures leave
// the fields unknown, they never fail the resolution.
func (p *Pipeline) enrich(ctx context.Context, rec *models.AccountRecord) {
	if p.search == nil {
		return
	}

	if rec.CreatedUTC == 0 {
		ts, err := p.search.EarliestActivity(ctx, rec.Username)
		switch {
		case err != nil:
			p.log.WithError(err).WithField("username", rec.Username).Debug("Archive earliest-activity search failed")
		case ts > 0:
			rec.CreatedUTC = ts
			rec.CreatedYear = time.Unix(ts, 0).UTC().Year()
			rec.Source = models.SourceEstimated
		}
	}

	ts, err := p.search.LatestActivity(ctx, rec.Username)
	switch {
	case err != nil:
		p.log.WithError(err).WithField("username", rec.Username).Debug("Archive latest-activity search failed")
	case ts > 0:
		rec.LastActivityUTC = ts
	}
}

// YearDistribution partitions account records by creation year. Records
// with no known creation date land under year 0.
func YearDistribution(records []models.AccountRecord) map[int]int {
	dist := make(map[int]int)
	for _, rec := range records {
		dist[rec.CreatedYear]++
	}
	return dist
}

// EnrichOverlap attaches resolved account records to overlap entries by
// case-insensitive username match.
func EnrichOverlap(result *models.OverlapResult, records []models.AccountRecord) {
	byName := make(map[string]models.AccountRecord, len(records))
	for _, rec := range records {
		byName[strings.ToLower(rec.Username)] = rec
	}
	for i := range result.Entries {
		if rec, ok := byName[strings.ToLower(result.Entries[i].Username)]; ok {
			r := rec
			result.Entries[i].Account = &r
		}
	}
}
