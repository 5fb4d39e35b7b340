package stats

import (
	"fmt"
	"time"
)

// Zone maps a display name to a constant UTC offset. Fixed offsets trade
// DST accuracy for determinism; at day/hour bucket granularity the error is
// acceptable for this analysis.
type Zone struct {
	Name          string `json:"name"`
	OffsetMinutes int    `json:"offset_minutes"`
}

// Zones is the supported zone enumeration. Offsets are standard (non-DST)
// time for each region.
var Zones = []Zone{
	{Name: "UTC", OffsetMinutes: 0},
	{Name: "US Eastern", OffsetMinutes: -5 * 60},
	{Name: "US Central", OffsetMinutes: -6 * 60},
	{Name: "US Mountain", OffsetMinutes: -7 * 60},
	{Name: "US Pacific", OffsetMinutes: -8 * 60},
	{Name: "UK", OffsetMinutes: 0},
	{Name: "Central Europe", OffsetMinutes: 1 * 60},
	{Name: "Japan", OffsetMinutes: 9 * 60},
	{Name: "Australia Eastern", OffsetMinutes: 10 * 60},
}

// ZoneByName resolves a zone from the static table.
func ZoneByName(name string) (Zone, error) {
	for _, z := range Zones {
		if z.Name == name {
			return z, nil
		}
	}
	return Zone{}, fmt.Errorf("unknown timezone %q", name)
}

// Bucket converts a UTC epoch timestamp into its local calendar day,
// weekday (Monday=0..Sunday=6) and hour of day under a fixed offset. The
// offset is applied by integer addition before date decomposition.
func Bucket(epoch int64, offsetMinutes int) (date time.Time, weekday int, hour int) {
	t := time.Unix(epoch+int64(offsetMinutes)*60, 0).UTC()
	date = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	weekday = (int(t.Weekday()) + 6) % 7
	hour = t.Hour()
	return date, weekday, hour
}
