package protocol

import "fmt"

// RequestStats is the normalized outcome of one request.
type RequestStats struct {
	BytesProcessed int64
	Status         string
}

// RequestStatsBuilder assembles a RequestStats and checks that every
// required field was set.
type RequestStatsBuilder struct {
	bytesProcessed *int64
	status         *string
}

// NewRequestStatsBuilder returns an empty builder.
func NewRequestStatsBuilder() *RequestStatsBuilder {
	return &RequestStatsBuilder{}
}

// BytesProcessed sets the number of body bytes.
func (b *RequestStatsBuilder) BytesProcessed(n int64) *RequestStatsBuilder {
	b.bytesProcessed = &n
	return b
}

// Status sets the status line.
func (b *RequestStatsBuilder) Status(s string) *RequestStatsBuilder {
	b.status = &s
	return b
}

// Build returns the stats or an error naming the first missing field.
func (b *RequestStatsBuilder) Build() (*RequestStats, error) {
	if b.bytesProcessed == nil {
		return nil, fmt.Errorf("request stats: bytes_processed must be set")
	}
	if *b.bytesProcessed < 0 {
		return nil, fmt.Errorf("request stats: bytes_processed must be non-negative, got %d", *b.bytesProcessed)
	}
	if b.status == nil {
		return nil, fmt.Errorf("request stats: status must be set")
	}

	return &RequestStats{
		BytesProcessed: *b.bytesProcessed,
		Status:         *b.status,
	}, nil
}

// MustBuild is like Build but panics on a missing field.
func (b *RequestStatsBuilder) MustBuild() *RequestStats {
	stats, err := b.Build()
	if err != nil {
		panic(err)
	}
	return stats
}
