// Package iridium fetches the Iridium flare table.
package iridium

import (
	"context"
	"log/slog"

	"github.com/star/skywatch/internal/heavens"
)

// Name is the source name of the flare table.
const Name = "iridium"

// Target is the page path of the flare table.
const Target = "IridiumFlares.aspx"

var schema = heavens.Schema{
	Source: Name,
	Columns: []heavens.Column{
		{Name: "time", Clock: true},
		{Name: "brightness"},
		{Name: "altitude"},
		{Name: "azimuth"},
		{Name: "satellite"},
		{Name: "distance_to_flare_centre"},
		{Name: "brightness_at_flare_centre"},
		{Name: "sun_altitude"},
	},
}

// Fetcher retrieves the flare table.
type Fetcher struct {
	client *heavens.Client
	logger *slog.Logger
}

func NewFetcher(client *heavens.Client, logger *slog.Logger) *Fetcher {
	return &Fetcher{client: client, logger: logger}
}

func (f *Fetcher) Name() string {
	return Name
}

// GetTable fetches and parses the upcoming flares.
func (f *Fetcher) GetTable(ctx context.Context) (*heavens.Table, error) {
	f.logger.Debug("fetching iridium flares")
	return f.client.GetTable(ctx, schema, Target)
}
