// Package domain models Weather Underground (WU) Personal Weather Station data.
//
// # Data Source
//
// Records come from the WU PWS v2 API, e.g.
// https://api.weather.com/v2/pws/observations/all/1day for rolling
// observations or /v2/pws/dailysummary/7day for daily summaries. Responses are
// requested with units=e, so measurements live under the "imperial" object:
//
//	{"observations":[
//	  {"stationID":"KTXAUSTI123","obsTimeLocal":"2024-04-26 15:10:00",
//	   "humidityAvg":71,
//	   "imperial":{"tempAvg":78.4,"precipRate":0.02,"precipTotal":0.31}},
//	  ...
//	]}
//
// Only five fields are kept:
//
//	obsTimeLocal          -> Record.ObservedAtLocal ("N/A" when absent)
//	humidityAvg           -> Record.HumidityAverage (percent, truncated to int)
//	imperial.tempAvg      -> Record.TemperatureAverage (°F)
//	imperial.precipRate   -> Record.PrecipitationRate (in/hr)
//	imperial.precipTotal  -> Record.PrecipitationTotal (in)
//
// Missing, null or wrongly typed fields decode to their defaults instead of
// failing the record. WU routinely emits null for precipitation on stations
// without a rain gauge.
//
// # ID Generation
//
// Observation IDs are "<station>-<16 hex chars>" where the hex is the leading
// 8 bytes of SHA-256 over station|obsTimeLocal. See [generateID].
package domain
