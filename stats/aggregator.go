package stats

import (
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mwhitford/reddit-profiler/models"
)

const topContributorsLimit = 20

// Aggregation is the full analytics output for one validated RecordSet.
type Aggregation struct {
	Mode            models.AnalysisMode      `json:"mode"`
	Anchor          string                   `json:"anchor"`
	Year            int                      `json:"year"`
	Timezone        string                   `json:"timezone"`
	Calendar        []models.ActivityDay     `json:"calendar"`
	Heatmap         []models.HeatmapCell     `json:"heatmap"`
	Contributors    []models.ContributorRank `json:"-"`
	TopContributors []models.ContributorRank `json:"top_contributors"`
	Summary         models.SummaryStats      `json:"summary"`
}

// Aggregate runs the single streaming pass over a validated RecordSet and
// produces the zero-filled calendar for the target year, the 7x24 heatmap
// over all records, the contributor table, and summary statistics. In
// subreddit mode contributors are authors; in user mode they are the
// subreddits participated in.
func Aggregate(rs *models.RecordSet, year int, zone Zone, log *logrus.Logger) *Aggregation {
	calendar := make(map[string]int)
	var heatmap [7][24]int
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	display := make(map[string]string)

	var earliest, latest time.Time
	var haveDates bool

	for i, rec := range rs.Records {
		date, weekday, hour := Bucket(rec.CreatedUTC, zone.OffsetMinutes)

		if date.Year() == year {
			calendar[date.Format("2006-01-02")]++
		}
		heatmap[weekday][hour]++

		if !haveDates || date.Before(earliest) {
			earliest = date
		}
		if !haveDates || date.After(latest) {
			latest = date
		}
		haveDates = true

		name := contributorKey(rs.Mode, rec)
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)
		if _, ok := firstSeen[lower]; !ok {
			firstSeen[lower] = i
			display[lower] = name
		}
		counts[lower]++
	}

	agg := &Aggregation{
		Mode:     rs.Mode,
		Anchor:   rs.Anchor,
		Year:     year,
		Timezone: zone.Name,
		Calendar: fillCalendar(year, calendar),
		Heatmap:  flattenHeatmap(heatmap),
	}

	agg.Contributors = rankContributors(counts, firstSeen, display)
	if len(agg.Contributors) > topContributorsLimit {
		agg.TopContributors = agg.Contributors[:topContributorsLimit]
	} else {
		agg.TopContributors = agg.Contributors
	}

	agg.Summary = summarize(len(rs.Records), len(counts), earliest, latest, haveDates)

	log.WithFields(logrus.Fields{
		"mode":         rs.Mode,
		"anchor":       rs.Anchor,
		"year":         year,
		"timezone":     zone.Name,
		"records":      len(rs.Records),
		"contributors": len(counts),
	}).Info("Aggregation complete")

	return agg
}

func contributorKey(mode models.AnalysisMode, rec models.Record) string {
	switch mode {
	case models.ModeSubreddit:
		author := rec.Author
		lower := strings.ToLower(author)
		// Same exclusions the username extraction applies.
		if author == "" || lower == models.DeletedAuthor || lower == "automoderator" {
			return ""
		}
		return author
	case models.ModeUser:
		return rec.Subreddit
	}
	return ""
}

// fillCalendar materializes every day of the year, zero-filled, in order.
func fillCalendar(year int, counts map[string]int) []models.ActivityDay {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)

	days := make([]models.ActivityDay, 0, 366)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		days = append(days, models.ActivityDay{Date: key, Count: counts[key]})
	}
	return days
}

func flattenHeatmap(grid [7][24]int) []models.HeatmapCell {
	cells := make([]models.HeatmapCell, 0, 7*24)
	for weekday := 0; weekday < 7; weekday++ {
		for hour := 0; hour < 24; hour++ {
			cells = append(cells, models.HeatmapCell{
				Weekday: weekday,
				Hour:    hour,
				Count:   grid[weekday][hour],
			})
		}
	}
	return cells
}

// rankContributors sorts by count descending, ties broken by first-seen
// order in the record stream.
func rankContributors(counts, firstSeen map[string]int, display map[string]string) []models.ContributorRank {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return firstSeen[keys[i]] < firstSeen[keys[j]]
	})

	ranks := make([]models.ContributorRank, 0, len(keys))
	for _, k := range keys {
		ranks = append(ranks, models.ContributorRank{Name: display[k], Count: counts[k]})
	}
	return ranks
}

// summarize computes the rate statistics. Rates over an empty span or an
// empty contributor set stay nil rather than reporting zero.
func summarize(total, contributors int, earliest, latest time.Time, haveDates bool) models.SummaryStats {
	summary := models.SummaryStats{
		TotalRecords:         total,
		DistinctContributors: contributors,
	}

	if haveDates {
		summary.EarliestDate = earliest.Format("2006-01-02")
		summary.LatestDate = latest.Format("2006-01-02")

		spanDays := int(latest.Sub(earliest).Hours()/24) + 1
		if spanDays > 0 {
			ppd := float64(total) / float64(spanDays)
			pph := float64(total) / float64(spanDays*24)
			summary.PostsPerDay = &ppd
			summary.PostsPerHour = &pph
		}
	}

	if contributors > 0 {
		avg := float64(total) / float64(contributors)
		summary.AvgPerContributor = &avg
	}

	return summary
}
