package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService(t *testing.T) {
	service := NewService()
	require.NotNil(t, service)
}

func TestToChannelAndDrain_RoundTrip(t *testing.T) {
	prices := []float64{1.0, 2.0, 3.0, 4.0, 5.0}

	drained := drain(toChannel(prices))
	assert.Equal(t, prices, drained)
}

func TestToChannel_Empty(t *testing.T) {
	drained := drain(toChannel(nil))
	assert.Empty(t, drained)
}
