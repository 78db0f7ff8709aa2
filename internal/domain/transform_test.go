package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStationID  = "KMAHANOV10"
	testObservedAt = "2024-04-26 15:04:57"
)

func testRecord() Record {
	return Record{
		ObservedAtLocal:    testObservedAt,
		HumidityAverage:    67,
		TemperatureAverage: 64.3,
		PrecipitationRate:  0.02,
		PrecipitationTotal: 0.11,
	}
}

func TestNewObservation(t *testing.T) {
	fixedTime := time.Date(2024, 4, 26, 19, 5, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixedTime))
	t.Cleanup(func() { SetClock(nil) })

	obs := NewObservation(testStationID, testRecord())

	assert.Equal(t, testStationID, obs.StationID)
	assert.Equal(t, testObservedAt, obs.ObservedAtLocal)
	assert.Equal(t, 67, obs.HumidityAverage)
	assert.InEpsilon(t, 64.3, obs.TemperatureAverage, 0.0001)
	assert.InEpsilon(t, 0.02, obs.PrecipitationRate, 0.0001)
	assert.InEpsilon(t, 0.11, obs.PrecipitationTotal, 0.0001)
	assert.Equal(t, fixedTime, obs.FetchedAt)
	assert.True(t, strings.HasPrefix(obs.ID, testStationID+"-"))
}

func TestNewObservation_FetchedAtIsUTC(t *testing.T) {
	loc := time.FixedZone("EDT", -4*60*60)
	SetClock(clockwork.NewFakeClockAt(time.Date(2024, 4, 26, 15, 5, 0, 0, loc)))
	t.Cleanup(func() { SetClock(nil) })

	obs := NewObservation(testStationID, testRecord())
	assert.Equal(t, time.UTC, obs.FetchedAt.Location())
	assert.Equal(t, 19, obs.FetchedAt.Hour())
}

func TestGenerateID(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, generateID(testStationID, testObservedAt), generateID(testStationID, testObservedAt))
	})

	t.Run("independent of measurements and fetch time", func(t *testing.T) {
		a := NewObservation(testStationID, testRecord())
		rec := testRecord()
		rec.HumidityAverage = 12
		b := NewObservation(testStationID, rec)
		assert.Equal(t, a.ID, b.ID)
	})

	t.Run("differs by observation time", func(t *testing.T) {
		assert.NotEqual(t, generateID(testStationID, testObservedAt), generateID(testStationID, "2024-04-26 15:09:57"))
	})

	t.Run("differs by station", func(t *testing.T) {
		assert.NotEqual(t, generateID(testStationID, testObservedAt), generateID("KTXAUSTI2", testObservedAt))
	})

	t.Run("format", func(t *testing.T) {
		id := generateID(testStationID, testObservedAt)
		suffix := strings.TrimPrefix(id, testStationID+"-")
		assert.Len(t, suffix, 16)
	})

	t.Run("no station", func(t *testing.T) {
		id := generateID("", testObservedAt)
		assert.Len(t, id, 16)
		assert.NotContains(t, id, "-")
	})
}

func TestSerializeObservation(t *testing.T) {
	fixedTime := time.Date(2024, 4, 26, 19, 5, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixedTime))
	t.Cleanup(func() { SetClock(nil) })

	obs := NewObservation(testStationID, testRecord())
	out, err := SerializeObservation(obs)
	require.NoError(t, err)

	assert.Equal(t, []byte(obs.ID), out.Key)
	assert.Equal(t, testStationID, out.Headers["station_id"])
	assert.Equal(t, "2024-04-26T19:05:00Z", out.Headers["fetched_at"])

	var fields map[string]any
	require.NoError(t, json.Unmarshal(out.Value, &fields))
	assert.Equal(t, obs.ID, fields["id"])
	assert.Equal(t, testStationID, fields["station_id"])
	assert.Equal(t, testObservedAt, fields["obs_time_local"])
	assert.InDelta(t, 67, fields["humidity_avg"], 0)
	assert.InDelta(t, 64.3, fields["temp_avg"], 0.0001)
	assert.InDelta(t, 0.02, fields["precip_rate"], 0.0001)
	assert.InDelta(t, 0.11, fields["precip_total"], 0.0001)
	assert.Equal(t, "2024-04-26T19:05:00Z", fields["fetched_at"])
}

func TestSetClock_NilResetsToRealClock(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
	SetClock(nil)

	obs := NewObservation(testStationID, testRecord())
	assert.WithinDuration(t, time.Now(), obs.FetchedAt, time.Minute)
}
