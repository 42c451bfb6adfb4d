package events

import (
	"math"
	"testing"

	"github.com/mcdev12/watchroom/go/internal/models"
	"github.com/stretchr/testify/require"
)

func TestParseLoadEnvelope(t *testing.T) {
	raw := []byte(`{"type":"load","data":{"id":"abc","timestamp":37.5,"width":16,"height":9}}`)

	msg, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, TypeLoad, msg.Type)

	var p LoadPayload
	require.NoError(t, msg.Decode(&p))
	require.Equal(t, LoadPayload{ID: "abc", Timestamp: 37.5, Width: 16, Height: 9}, p)
}

func TestParseRejectsMissingType(t *testing.T) {
	_, err := Parse([]byte(`{"data":{}}`))
	require.Error(t, err)

	_, err = Parse([]byte(`not json`))
	require.Error(t, err)
}

func TestDecodeWithoutData(t *testing.T) {
	var p ReadyUpPayload
	require.Error(t, GoHome().Decode(&p))
}

func TestStateSnapshotCarriesTimeline(t *testing.T) {
	tl, err := models.PausedAt(4).UnpauseAt(0, 10)
	require.NoError(t, err)

	raw, err := State(StatePayload{ContentActive: true, Timeline: tl, Volume: 0.125}).Bytes()
	require.NoError(t, err)

	msg, err := Parse(raw)
	require.NoError(t, err)
	var p StatePayload
	require.NoError(t, msg.Decode(&p))
	require.Equal(t, tl, p.Timeline)
	require.True(t, p.ContentActive)
}

func TestEncodeRejectsNaN(t *testing.T) {
	_, err := Encode(TypeReadyUp, ReadyUpPayload{Timestamp: math.NaN()})
	require.Error(t, err)

	// typed constructors keep the envelope type even when the payload is dropped
	require.Equal(t, TypeReadyUp, ReadyUp(math.NaN()).Type)
}
