package wustream

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/couchcryptid/pws-feed-service/internal/domain"
)

// DefaultDecodeBufferSize is the scratch size used when none is configured.
// A single WU observation object is roughly 700 bytes.
const DefaultDecodeBufferSize = 2048

// recordPaths are looked up in one pass; indexes match extract.
var recordPaths = []string{
	"obsTimeLocal",
	"humidityAvg",
	"imperial.tempAvg",
	"imperial.precipRate",
	"imperial.precipTotal",
}

// Decoder parses one JSON object at a time into a Record. The scratch buffer
// is the only memory it uses for the object and bounds its size. A Decoder is
// not safe for concurrent use.
type Decoder struct {
	scratch []byte
}

// NewDecoder returns a Decoder that captures objects into scratch. An empty
// scratch gets a DefaultDecodeBufferSize allocation.
func NewDecoder(scratch []byte) *Decoder {
	if len(scratch) == 0 {
		scratch = make([]byte, DefaultDecodeBufferSize)
	}
	return &Decoder{scratch: scratch}
}

// DecodeOne reads exactly one object from r and stores it in rec. rec is only
// written on success. Leading whitespace is skipped; a ']' in place of the
// object yields ErrArrayEnd.
func (d *Decoder) DecodeOne(r io.ByteReader, rec *domain.Record) error {
	doc, err := d.capture(r)
	if err != nil {
		return err
	}
	if !gjson.ValidBytes(doc) {
		return fmt.Errorf("%w: invalid json object", ErrMalformedRecord)
	}
	*rec = extract(doc)
	return nil
}

// capture copies one balanced {...} object into the scratch buffer, tracking
// strings so braces inside values do not count.
func (d *Decoder) capture(r io.ByteReader) ([]byte, error) {
	first, err := skipSpace(r)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for object: %w", ErrStreamTruncated, err)
	}
	switch first {
	case '{':
	case ']':
		return nil, ErrArrayEnd
	default:
		return nil, fmt.Errorf("%w: expected '{', found %q", ErrMalformedRecord, first)
	}

	buf := d.scratch
	buf[0] = first
	n := 1
	depth := 1
	inString, escaped := false, false

	for depth > 0 {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: inside object after %d bytes: %w", ErrStreamTruncated, n, err)
		}
		if n == len(buf) {
			return nil, fmt.Errorf("%w: object exceeds %d byte decode buffer", ErrMalformedRecord, len(buf))
		}
		buf[n] = b
		n++

		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
	}
	return buf[:n], nil
}

func skipSpace(r io.ByteReader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, nil
	}
}

func extract(doc []byte) domain.Record {
	res := gjson.GetManyBytes(doc, recordPaths...)

	rec := domain.Record{ObservedAtLocal: domain.DefaultObservedAt}
	if res[0].Type == gjson.String {
		rec.ObservedAtLocal = truncate(res[0].Str, domain.MaxObservedAtLen)
	}
	if res[1].Type == gjson.Number {
		rec.HumidityAverage = int(res[1].Int())
	}
	rec.TemperatureAverage = number(res[2])
	rec.PrecipitationRate = number(res[3])
	rec.PrecipitationTotal = number(res[4])
	return rec
}

// number returns the value of a JSON number, 0 for anything else (absent,
// null, string).
func number(r gjson.Result) float64 {
	if r.Type != gjson.Number {
		return 0
	}
	return r.Num
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
