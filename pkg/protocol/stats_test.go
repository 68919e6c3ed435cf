package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestStatsBuilder_Build(t *testing.T) {
	tests := []struct {
		name   string
		bytes  int64
		status string
	}{
		{"ok", 5, "200 OK"},
		{"empty body", 0, "204 No Content"},
		{"server error", 1024, "500 Internal Server Error"},
		{"empty status", 7, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, err := NewRequestStatsBuilder().
				BytesProcessed(tt.bytes).
				Status(tt.status).
				Build()
			require.NoError(t, err)
			assert.Equal(t, tt.bytes, stats.BytesProcessed)
			assert.Equal(t, tt.status, stats.Status)
		})
	}
}

func TestRequestStatsBuilder_MissingFields(t *testing.T) {
	_, err := NewRequestStatsBuilder().Status("200 OK").Build()
	assert.ErrorContains(t, err, "bytes_processed")

	_, err = NewRequestStatsBuilder().BytesProcessed(1).Build()
	assert.ErrorContains(t, err, "status")

	_, err = NewRequestStatsBuilder().Build()
	assert.Error(t, err)
}

func TestRequestStatsBuilder_NegativeBytes(t *testing.T) {
	_, err := NewRequestStatsBuilder().BytesProcessed(-1).Status("200 OK").Build()
	assert.ErrorContains(t, err, "non-negative")
}

func TestRequestStatsBuilder_MustBuild(t *testing.T) {
	assert.Panics(t, func() {
		NewRequestStatsBuilder().Status("200 OK").MustBuild()
	})

	stats := NewRequestStatsBuilder().BytesProcessed(3).Status("201 Created").MustBuild()
	assert.Equal(t, &RequestStats{BytesProcessed: 3, Status: "201 Created"}, stats)
}

func TestRequestStatsBuilder_LastWriteWins(t *testing.T) {
	stats := NewRequestStatsBuilder().
		BytesProcessed(1).
		BytesProcessed(2).
		Status("a").
		Status("b").
		MustBuild()
	assert.Equal(t, int64(2), stats.BytesProcessed)
	assert.Equal(t, "b", stats.Status)
}
