package domain

import "time"

// Observation is a Record attributed to its station, ready for publishing.
type Observation struct {
	ID                 string    `json:"id"`
	StationID          string    `json:"station_id"`
	ObservedAtLocal    string    `json:"obs_time_local"`
	HumidityAverage    int       `json:"humidity_avg"`
	TemperatureAverage float64   `json:"temp_avg"`
	PrecipitationRate  float64   `json:"precip_rate"`
	PrecipitationTotal float64   `json:"precip_total"`
	FetchedAt          time.Time `json:"fetched_at"`
}

// OutputEvent is the serialized form destined for the sink.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
