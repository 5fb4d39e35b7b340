package stats

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhitford/reddit-profiler/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func utcZone() Zone {
	return Zone{Name: "UTC", OffsetMinutes: 0}
}

func epochFor(date string, hour int) int64 {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return t.Add(time.Duration(hour) * time.Hour).Unix()
}

func subredditSet(records ...models.Record) *models.RecordSet {
	return &models.RecordSet{
		Mode:    models.ModeSubreddit,
		Anchor:  "osint",
		Records: records,
	}
}

func rec(author, date string, hour int) models.Record {
	return models.Record{
		Kind:       models.KindPost,
		Subreddit:  "osint",
		Author:     author,
		CreatedUTC: epochFor(date, hour),
		Title:      "t",
	}
}

func TestAggregateCalendarExactYear(t *testing.T) {
	rs := subredditSet(
		rec("alice", "2021-01-01", 10),
		rec("bob", "2021-06-15", 3),
		rec("bob", "2021-06-15", 4),
		rec("carol", "2020-12-31", 23), // outside target year
	)

	agg := Aggregate(rs, 2021, utcZone(), testLogger())

	require.Len(t, agg.Calendar, 365)

	seen := make(map[string]int)
	total := 0
	for _, day := range agg.Calendar {
		_, dup := seen[day.Date]
		require.False(t, dup, "date %s appears twice", day.Date)
		seen[day.Date] = day.Count
		total += day.Count
	}
	assert.Equal(t, 3, total, "calendar counts only in-year records")
	assert.Equal(t, 1, seen["2021-01-01"])
	assert.Equal(t, 2, seen["2021-06-15"])
	assert.Equal(t, 0, seen["2021-06-16"])
}

func TestAggregateLeapYearCalendar(t *testing.T) {
	rs := subredditSet(rec("alice", "2020-02-29", 12))

	agg := Aggregate(rs, 2020, utcZone(), testLogger())

	require.Len(t, agg.Calendar, 366)
	found := false
	for _, day := range agg.Calendar {
		if day.Date == "2020-02-29" {
			found = true
			assert.Equal(t, 1, day.Count)
		}
	}
	assert.True(t, found)
}

func TestAggregateHeatmapDenseAndYearIndependent(t *testing.T) {
	rs := subredditSet(
		rec("alice", "2019-03-04", 9),  // Monday
		rec("bob", "2021-06-15", 3),    // Tuesday
		rec("carol", "2021-06-20", 22), // Sunday
	)

	agg := Aggregate(rs, 2021, utcZone(), testLogger())

	require.Len(t, agg.Heatmap, 168)
	total := 0
	byCell := make(map[[2]int]int)
	for _, cell := range agg.Heatmap {
		total += cell.Count
		byCell[[2]int{cell.Weekday, cell.Hour}] = cell.Count
	}
	// heatmap covers all records regardless of the selected year
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, byCell[[2]int{0, 9}])
	assert.Equal(t, 1, byCell[[2]int{1, 3}])
	assert.Equal(t, 1, byCell[[2]int{6, 22}])
}

func TestAggregateContributorsSubredditMode(t *testing.T) {
	rs := subredditSet(
		rec("bob", "2021-01-01", 1),
		rec("alice", "2021-01-01", 2),
		rec("bob", "2021-01-02", 3),
		rec("carol", "2021-01-02", 4),
		rec(models.DeletedAuthor, "2021-01-03", 5),
		rec("AutoModerator", "2021-01-03", 6),
	)

	agg := Aggregate(rs, 2021, utcZone(), testLogger())

	require.Len(t, agg.Contributors, 3)
	assert.Equal(t, models.ContributorRank{Name: "bob", Count: 2}, agg.Contributors[0])
	// tie between alice and carol broken by first-seen order
	assert.Equal(t, "alice", agg.Contributors[1].Name)
	assert.Equal(t, "carol", agg.Contributors[2].Name)
	assert.Equal(t, 3, agg.Summary.DistinctContributors)
}

func TestAggregateContributorsUserMode(t *testing.T) {
	rs := &models.RecordSet{
		Mode:   models.ModeUser,
		Anchor: "alice",
		Records: []models.Record{
			rec("alice", "2021-01-01", 1),
			{Kind: models.KindComment, Subreddit: "golang", Author: "alice", CreatedUTC: epochFor("2021-01-01", 2), Body: "b", LinkID: "t3_x"},
			{Kind: models.KindComment, Subreddit: "golang", Author: "alice", CreatedUTC: epochFor("2021-01-01", 3), Body: "b", LinkID: "t3_y"},
		},
	}

	agg := Aggregate(rs, 2021, utcZone(), testLogger())

	require.Len(t, agg.Contributors, 2)
	assert.Equal(t, models.ContributorRank{Name: "golang", Count: 2}, agg.Contributors[0])
	assert.Equal(t, models.ContributorRank{Name: "osint", Count: 1}, agg.Contributors[1])
}

func TestAggregateSummaryStats(t *testing.T) {
	rs := subredditSet(
		rec("alice", "2021-01-01", 0),
		rec("bob", "2021-01-02", 0),
		rec("alice", "2021-01-04", 0),
	)

	agg := Aggregate(rs, 2021, utcZone(), testLogger())

	assert.Equal(t, 3, agg.Summary.TotalRecords)
	assert.Equal(t, "2021-01-01", agg.Summary.EarliestDate)
	assert.Equal(t, "2021-01-04", agg.Summary.LatestDate)

	require.NotNil(t, agg.Summary.PostsPerDay)
	assert.InDelta(t, 0.75, *agg.Summary.PostsPerDay, 1e-9) // 3 records over a 4-day span
	require.NotNil(t, agg.Summary.PostsPerHour)
	assert.InDelta(t, 0.75/24, *agg.Summary.PostsPerHour, 1e-9)
	require.NotNil(t, agg.Summary.AvgPerContributor)
	assert.InDelta(t, 1.5, *agg.Summary.AvgPerContributor, 1e-9)
}

func TestAggregateEmptySpanUndefined(t *testing.T) {
	rs := subredditSet()

	agg := Aggregate(rs, 2021, utcZone(), testLogger())

	assert.Equal(t, 0, agg.Summary.TotalRecords)
	assert.Nil(t, agg.Summary.PostsPerDay)
	assert.Nil(t, agg.Summary.PostsPerHour)
	assert.Nil(t, agg.Summary.AvgPerContributor)
	assert.Len(t, agg.Calendar, 365)
	assert.Len(t, agg.Heatmap, 168)
}

func TestAggregateTopContributorsCapped(t *testing.T) {
	records := make([]models.Record, 0, 25)
	for i := 0; i < 25; i++ {
		records = append(records, rec(string(rune('a'+i)), "2021-01-01", i%24))
	}
	rs := subredditSet(records...)

	agg := Aggregate(rs, 2021, utcZone(), testLogger())

	assert.Len(t, agg.Contributors, 25)
	assert.Len(t, agg.TopContributors, 20)
}

func TestAggregateTimezoneShiftsBuckets(t *testing.T) {
	// 23:00 UTC on Dec 31 lands in the next year under +2h
	rs := subredditSet(rec("alice", "2020-12-31", 23))
	zone := Zone{Name: "Central Europe", OffsetMinutes: 120}

	agg := Aggregate(rs, 2021, zone, testLogger())

	total := 0
	for _, day := range agg.Calendar {
		total += day.Count
	}
	assert.Equal(t, 1, total)
	assert.Equal(t, "2021-01-01", agg.Summary.EarliestDate)
}
