package wustream

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxStatusLine bounds how much of the first response line is read.
const maxStatusLine = 64

// CheckStatus consumes the status line and accepts only "HTTP/1.x 200 ...".
// The reason phrase is ignored.
func CheckStatus(r io.ByteReader) error {
	line, err := readStatusLine(r)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadStatus, err)
	}

	proto, rest, ok := strings.Cut(line, " ")
	if !ok {
		return fmt.Errorf("%w: %q", ErrBadStatus, line)
	}
	major, _, ok := http.ParseHTTPVersion(proto)
	if !ok || major != 1 {
		return fmt.Errorf("%w: unsupported protocol %q", ErrBadStatus, proto)
	}
	code, _, _ := strings.Cut(rest, " ")
	if code != "200" {
		return fmt.Errorf("%w: %q", ErrBadStatus, line)
	}
	return nil
}

func readStatusLine(r io.ByteReader) (string, error) {
	var buf [maxStatusLine]byte
	n := 0
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("read status line: %w", err)
		}
		if b == '\n' {
			break
		}
		if n == len(buf) {
			return "", fmt.Errorf("status line exceeds %d bytes", maxStatusLine)
		}
		buf[n] = b
		n++
	}
	return strings.TrimSuffix(string(buf[:n]), "\r"), nil
}
