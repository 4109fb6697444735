// Package satellite fetches the visible pass summary table for one
// satellite.
package satellite

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/star/skywatch/internal/heavens"
)

// Name is the source name of the pass summary table.
const Name = "satellite"

// DefaultID is the NORAD catalog number of the ISS.
const DefaultID = 25544

const secondsPerDay = 24 * 3600

var schema = heavens.Schema{
	Source: Name,
	Columns: []heavens.Column{
		{Name: "date"},
		{Name: "brightness"},
		{Name: "start_time", Clock: true},
		{Name: "start_altitude"},
		{Name: "start_azimuth"},
		{Name: "highest_time", Clock: true},
		{Name: "highest_altitude"},
		{Name: "highest_azimuth"},
		{Name: "end_time", Clock: true},
		{Name: "end_altitude"},
		{Name: "end_azimuth"},
		{Name: "pass_type"},
	},
	Derive: deriveDuration,
}

// Fetcher retrieves the pass summary table for a satellite.
type Fetcher struct {
	client *heavens.Client
	id     int
	logger *slog.Logger
}

// NewFetcher creates a Fetcher for the satellite with NORAD id. Non-positive
// ids fall back to DefaultID.
func NewFetcher(client *heavens.Client, id int, logger *slog.Logger) *Fetcher {
	if id <= 0 {
		id = DefaultID
	}
	return &Fetcher{
		client: client,
		id:     id,
		logger: logger,
	}
}

// Name returns the source name.
func (f *Fetcher) Name() string {
	return Name
}

// ID returns the NORAD catalog number being tracked.
func (f *Fetcher) ID() int {
	return f.id
}

// GetTable fetches and parses the pass summary.
func (f *Fetcher) GetTable(ctx context.Context) (*heavens.Table, error) {
	f.logger.Debug("fetching pass summary", "norad_id", f.id)
	return f.client.GetTable(ctx, schema, Target(f.id))
}

// Target returns the page path for the pass summary of id.
func Target(id int) string {
	return "PassSummary.aspx?satid=" + strconv.Itoa(id)
}

// deriveDuration adds the pass length in seconds. Passes that cross
// midnight wrap into the next day.
func deriveDuration(r *heavens.Row) {
	d := r.Seconds["end_time"] - r.Seconds["start_time"]
	if d < 0 {
		d += secondsPerDay
	}
	r.Seconds["duration"] = d
}
