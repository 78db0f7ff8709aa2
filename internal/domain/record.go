package domain

// DefaultObservedAt is the timestamp placeholder for records whose source
// object carries no usable "obsTimeLocal" string.
const DefaultObservedAt = "N/A"

// MaxObservedAtLen bounds the stored local timestamp in bytes. WU local
// timestamps ("2024-04-26 15:10:00") are far shorter; longer values are cut.
const MaxObservedAtLen = 63

// Record is one decoded PWS observation or daily summary. The caller owns the
// storage; decoders only ever write whole Records into caller-provided slots.
type Record struct {
	ObservedAtLocal    string  `json:"obs_time_local"`
	HumidityAverage    int     `json:"humidity_avg"`
	TemperatureAverage float64 `json:"temp_avg"`
	PrecipitationRate  float64 `json:"precip_rate"`
	PrecipitationTotal float64 `json:"precip_total"`
}
