package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneByName(t *testing.T) {
	zone, err := ZoneByName("Japan")
	require.NoError(t, err)
	assert.Equal(t, 9*60, zone.OffsetMinutes)

	_, err = ZoneByName("Mars")
	assert.Error(t, err)
}

func TestBucket(t *testing.T) {
	tests := []struct {
		name    string
		epoch   int64
		offset  int
		date    string
		weekday int
		hour    int
	}{
		{
			// 2020-09-13 12:26:40 UTC, a Sunday
			name:    "UTC",
			epoch:   1600000000,
			offset:  0,
			date:    "2020-09-13",
			weekday: 6,
			hour:    12,
		},
		{
			name:    "Japan evening same day",
			epoch:   1600000000,
			offset:  9 * 60,
			date:    "2020-09-13",
			weekday: 6,
			hour:    21,
		},
		{
			// 23:30 UTC pushed into the next day
			name:    "Positive offset crosses midnight",
			epoch:   1600039800,
			offset:  60,
			date:    "2020-09-14",
			weekday: 0,
			hour:    0,
		},
		{
			// 00:30 UTC pulled into the previous day
			name:    "Negative offset crosses midnight",
			epoch:   1599957000,
			offset:  -5 * 60,
			date:    "2020-09-12",
			weekday: 5,
			hour:    19,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			date, weekday, hour := Bucket(tc.epoch, tc.offset)
			assert.Equal(t, tc.date, date.Format("2006-01-02"))
			assert.Equal(t, tc.weekday, weekday)
			assert.Equal(t, tc.hour, hour)
		})
	}
}
