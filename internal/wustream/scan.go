package wustream

import (
	"fmt"
	"io"
)

// Separator is what SkipToNextElement stopped on.
type Separator int

const (
	// SeparatorComma means another element follows.
	SeparatorComma Separator = iota + 1
	// SeparatorArrayEnd means the array closed.
	SeparatorArrayEnd
)

func (s Separator) String() string {
	switch s {
	case SeparatorComma:
		return "comma"
	case SeparatorArrayEnd:
		return "array_end"
	default:
		return "unknown"
	}
}

// LocateArray discards bytes until marker has been read in full. The reader
// is left positioned right after the marker. An empty marker matches
// immediately.
func LocateArray(r io.ByteReader, marker []byte) error {
	if len(marker) == 0 {
		return nil
	}

	// KMP keeps the scan single-pass: bytes are never re-read after a
	// partial match fails.
	fallback := prefixTable(marker)
	matched := 0
	for {
		b, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: %q: %w", ErrArrayNotFound, marker, err)
		}
		for matched > 0 && b != marker[matched] {
			matched = fallback[matched-1]
		}
		if b == marker[matched] {
			matched++
		}
		if matched == len(marker) {
			return nil
		}
	}
}

// prefixTable returns, for each i, the length of the longest proper prefix of
// p[:i+1] that is also its suffix.
func prefixTable(p []byte) []int {
	t := make([]int, len(p))
	k := 0
	for i := 1; i < len(p); i++ {
		for k > 0 && p[i] != p[k] {
			k = t[k-1]
		}
		if p[i] == p[k] {
			k++
		}
		t[i] = k
	}
	return t
}

// SkipToNextElement discards bytes up to and including the next ',' or ']'.
func SkipToNextElement(r io.ByteReader) (Separator, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("%w: looking for next element: %w", ErrStreamTruncated, err)
		}
		switch b {
		case ',':
			return SeparatorComma, nil
		case ']':
			return SeparatorArrayEnd, nil
		}
	}
}
