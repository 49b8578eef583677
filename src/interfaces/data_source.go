package interfaces

import (
	"context"

	"candle-replay/src/models"
)

// -----------------------------------------------------------------------------
// IDataProvider fetches OHLC history from a third-party market data API.
// -----------------------------------------------------------------------------

type IDataProvider interface {

	// Name returns the unique identifier of the provider
	Name() string

	// -----------------------------------------------------------------------------

	// FetchSeries returns the column-oriented series for the request.
	// Time values are epoch milliseconds.
	FetchSeries(ctx context.Context, req models.MSeriesRequest) (*models.MColumnSeries, error)
}

// -----------------------------------------------------------------------------
// ICandleSource is the file hand-off between the provider and the replay.
// -----------------------------------------------------------------------------

type ICandleSource interface {

	// ReadSource returns the raw bytes of a candle file and its resolved path.
	ReadSource(name string) ([]byte, string, error)

	// -----------------------------------------------------------------------------

	// WriteSeries stores a fetched series under name and returns its path.
	WriteSeries(name string, series *models.MColumnSeries) (string, error)
}
