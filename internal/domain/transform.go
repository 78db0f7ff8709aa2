package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// NewObservation attributes a decoded record to a station and stamps the
// fetch time from the package clock.
func NewObservation(stationID string, rec Record) Observation {
	return Observation{
		ID:                 generateID(stationID, rec.ObservedAtLocal),
		StationID:          stationID,
		ObservedAtLocal:    rec.ObservedAtLocal,
		HumidityAverage:    rec.HumidityAverage,
		TemperatureAverage: rec.TemperatureAverage,
		PrecipitationRate:  rec.PrecipitationRate,
		PrecipitationTotal: rec.PrecipitationTotal,
		FetchedAt:          clock.Now().UTC(),
	}
}

// generateID produces a deterministic ID from the station and the local
// observation time. Polling the rolling 1day window returns the same records
// many times; identical inputs must map to identical IDs so consumers and the
// dedup window can drop repeats.
func generateID(stationID, observedAt string) string {
	hash := sha256.Sum256([]byte(stationID + "|" + observedAt))
	short := hex.EncodeToString(hash[:8])
	if stationID == "" {
		return short
	}
	return stationID + "-" + short
}

// SerializeObservation marshals an observation into an OutputEvent keyed by
// its ID.
func SerializeObservation(obs Observation) (OutputEvent, error) {
	data, err := json.Marshal(obs)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize observation: %w", err)
	}
	return OutputEvent{
		Key:   []byte(obs.ID),
		Value: data,
		Headers: map[string]string{
			"station_id": obs.StationID,
			"fetched_at": obs.FetchedAt.Format(time.RFC3339),
		},
	}, nil
}
