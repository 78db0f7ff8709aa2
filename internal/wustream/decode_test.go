package wustream_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/pws-feed-service/internal/domain"
	"github.com/couchcryptid/pws-feed-service/internal/wustream"
)

// observationJSON is a trimmed /v2/pws/observations/all/1day element.
const observationJSON = `{"stationID":"KMAHANOV10","tz":"America/New_York",` +
	`"obsTimeUtc":"2024-04-26T19:04:57Z","obsTimeLocal":"2024-04-26 15:04:57",` +
	`"epoch":1714158297,"lat":42.1,"lon":-70.8,"solarRadiationHigh":512.3,` +
	`"uvHigh":4.0,"winddirAvg":212,"humidityHigh":78,"humidityLow":61,"humidityAvg":67,` +
	`"qcStatus":1,"imperial":{"tempHigh":66,"tempLow":62,"tempAvg":64.3,` +
	`"windspeedHigh":9,"windspeedAvg":3.1,"dewptAvg":52,"pressureMax":30.02,` +
	`"precipRate":0.02,"precipTotal":0.11}}`

// sentinel marks a slot so tests can tell whether the decoder wrote it.
var sentinel = domain.Record{ObservedAtLocal: "untouched", HumidityAverage: -1}

func decode(t *testing.T, input string) (domain.Record, *strings.Reader, error) {
	t.Helper()
	r := strings.NewReader(input)
	rec := sentinel
	err := wustream.NewDecoder(nil).DecodeOne(r, &rec)
	return rec, r, err
}

func TestDecodeOne_FullObservation(t *testing.T) {
	rec, r, err := decode(t, observationJSON+`,{"next":true}`)
	require.NoError(t, err)

	assert.Equal(t, domain.Record{
		ObservedAtLocal:    "2024-04-26 15:04:57",
		HumidityAverage:    67,
		TemperatureAverage: 64.3,
		PrecipitationRate:  0.02,
		PrecipitationTotal: 0.11,
	}, rec)
	assert.Equal(t, `,{"next":true}`, rest(t, r), "decoder must stop at the closing brace")
}

func TestDecodeOne_Defaults(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  domain.Record
	}{
		{
			name:  "empty object",
			input: `{}`,
			want:  domain.Record{ObservedAtLocal: domain.DefaultObservedAt},
		},
		{
			name:  "missing imperial",
			input: `{"obsTimeLocal":"2024-04-26 15:04:57","humidityAvg":55}`,
			want:  domain.Record{ObservedAtLocal: "2024-04-26 15:04:57", HumidityAverage: 55},
		},
		{
			name:  "null values",
			input: `{"obsTimeLocal":null,"humidityAvg":null,"imperial":{"tempAvg":null,"precipRate":null,"precipTotal":null}}`,
			want:  domain.Record{ObservedAtLocal: domain.DefaultObservedAt},
		},
		{
			name:  "wrong types",
			input: `{"obsTimeLocal":20240426,"humidityAvg":"67","imperial":{"tempAvg":"64.3","precipRate":true,"precipTotal":[1]}}`,
			want:  domain.Record{ObservedAtLocal: domain.DefaultObservedAt},
		},
		{
			name:  "metric block ignored",
			input: `{"obsTimeLocal":"x","metric":{"tempAvg":18,"precipTotal":2.8}}`,
			want:  domain.Record{ObservedAtLocal: "x"},
		},
		{
			name:  "empty timestamp kept",
			input: `{"obsTimeLocal":""}`,
			want:  domain.Record{ObservedAtLocal: ""},
		},
		{
			name:  "fractional humidity truncates",
			input: `{"humidityAvg":66.9}`,
			want:  domain.Record{ObservedAtLocal: domain.DefaultObservedAt, HumidityAverage: 66},
		},
		{
			name:  "negative temperature",
			input: `{"imperial":{"tempAvg":-12.5}}`,
			want:  domain.Record{ObservedAtLocal: domain.DefaultObservedAt, TemperatureAverage: -12.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _, err := decode(t, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec)
		})
	}
}

func TestDecodeOne_SkipsLeadingWhitespace(t *testing.T) {
	rec, _, err := decode(t, "\n\t  {\"humidityAvg\": 40}")
	require.NoError(t, err)
	assert.Equal(t, 40, rec.HumidityAverage)
}

func TestDecodeOne_BracesInsideStrings(t *testing.T) {
	input := `{"note":"}]{[\"}","obsTimeLocal":"a\\\"b","humidityAvg":12} trailing`
	rec, r, err := decode(t, input)
	require.NoError(t, err)
	assert.Equal(t, `a\"b`, rec.ObservedAtLocal)
	assert.Equal(t, 12, rec.HumidityAverage)
	assert.Equal(t, " trailing", rest(t, r))
}

func TestDecodeOne_TruncatesLongTimestamp(t *testing.T) {
	t.Run("ascii", func(t *testing.T) {
		long := strings.Repeat("x", 100)
		rec, _, err := decode(t, `{"obsTimeLocal":"`+long+`"}`)
		require.NoError(t, err)
		assert.Equal(t, long[:domain.MaxObservedAtLen], rec.ObservedAtLocal)
	})

	t.Run("does not split multibyte rune", func(t *testing.T) {
		// 62 ASCII bytes then a 3-byte rune straddling the limit.
		long := strings.Repeat("x", 62) + "€" + "tail"
		rec, _, err := decode(t, `{"obsTimeLocal":"`+long+`"}`)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("x", 62), rec.ObservedAtLocal)
	})

	t.Run("exact limit kept", func(t *testing.T) {
		exact := strings.Repeat("y", domain.MaxObservedAtLen)
		rec, _, err := decode(t, `{"obsTimeLocal":"`+exact+`"}`)
		require.NoError(t, err)
		assert.Equal(t, exact, rec.ObservedAtLocal)
	})
}

func TestDecodeOne_ArrayEnd(t *testing.T) {
	rec, r, err := decode(t, "  ]}")
	require.ErrorIs(t, err, wustream.ErrArrayEnd)
	assert.Equal(t, sentinel, rec)
	assert.Equal(t, "}", rest(t, r))
}

func TestDecodeOne_Failures(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "not an object", input: `42,`, wantErr: wustream.ErrMalformedRecord},
		{name: "string element", input: `"obs",`, wantErr: wustream.ErrMalformedRecord},
		{name: "invalid json inside braces", input: `{"humidityAvg":}`, wantErr: wustream.ErrMalformedRecord},
		{name: "missing colon", input: `{"humidityAvg" 1}`, wantErr: wustream.ErrMalformedRecord},
		{name: "truncated object", input: `{"obsTimeLocal":"2024-04-26 15:0`, wantErr: wustream.ErrStreamTruncated},
		{name: "truncated before object", input: "  \n", wantErr: wustream.ErrStreamTruncated},
		{name: "empty stream", input: "", wantErr: wustream.ErrStreamTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _, err := decode(t, tt.input)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, sentinel, rec, "failed decode must not write the slot")
		})
	}
}

func TestDecodeOne_OversizeRecord(t *testing.T) {
	dec := wustream.NewDecoder(make([]byte, 32))
	rec := sentinel

	err := dec.DecodeOne(strings.NewReader(observationJSON), &rec)
	require.ErrorIs(t, err, wustream.ErrMalformedRecord)
	assert.Contains(t, err.Error(), "32 byte")
	assert.Equal(t, sentinel, rec)
}

func TestDecodeOne_RecordFillsBufferExactly(t *testing.T) {
	input := `{"humidityAvg":5}`
	dec := wustream.NewDecoder(make([]byte, len(input)))
	var rec domain.Record

	require.NoError(t, dec.DecodeOne(strings.NewReader(input), &rec))
	assert.Equal(t, 5, rec.HumidityAverage)
}

func TestDecodeOne_ReusesScratch(t *testing.T) {
	dec := wustream.NewDecoder(make([]byte, 256))
	r := strings.NewReader(`{"obsTimeLocal":"first-value"}{"obsTimeLocal":"2nd"}`)

	var a, b domain.Record
	require.NoError(t, dec.DecodeOne(r, &a))
	require.NoError(t, dec.DecodeOne(r, &b))

	assert.Equal(t, "first-value", a.ObservedAtLocal, "earlier record must not alias the scratch buffer")
	assert.Equal(t, "2nd", b.ObservedAtLocal)
}
