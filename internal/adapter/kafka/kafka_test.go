package kafka

import (
	"testing"
	"time"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/hrrr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeRunEvent(t *testing.T) {
	now := time.Date(2020, 8, 1, 7, 5, 0, 0, time.UTC)
	event := hrrr.RunEvent{
		ID:           "20200801_06z_anl",
		RunTime:      time.Date(2020, 8, 1, 6, 0, 0, 0, time.UTC),
		Kind:         hrrr.Analysis,
		Source:       "s3://hrrrzarr",
		DiscoveredAt: now,
	}

	msg, err := serializeRunEvent(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("20200801_06z_anl"), msg.Key)
	assert.Contains(t, string(msg.Value), `"kind":"anl"`)
	assert.Contains(t, string(msg.Value), `"source":"s3://hrrrzarr"`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("anl"), msg.Headers[0].Value)
	assert.Equal(t, "discovered_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}
