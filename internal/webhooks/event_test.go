package webhooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventsAcceptsObjectOrArray(t *testing.T) {
	events, err := DecodeEvents([]byte(`[{"objectType":"DEAL","objectId":12345,"propertyName":"dealstage","propertyValue":"closedwon"},{"objectType":"CONTACT","objectId":7}]`))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].DealClosedWon())
	assert.False(t, events[1].DealClosedWon())

	events, err = DecodeEvents([]byte(` {"objectType":"DEAL","objectId":9,"propertyName":"dealstage","propertyValue":"appointmentscheduled"}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(9), events[0].ObjectID)
	assert.False(t, events[0].DealClosedWon())
}

func TestDecodeEventsRejectsBadPayloads(t *testing.T) {
	_, err := DecodeEvents(nil)
	assert.ErrorIs(t, err, ErrEmptyPayload)
	_, err = DecodeEvents([]byte(`{not json`))
	assert.Error(t, err)
	_, err = DecodeEvents([]byte(`[1,2]`))
	assert.Error(t, err)
}
