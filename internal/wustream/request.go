package wustream

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// writeRequest emits an HTTP/1.0 GET for the WU endpoint and flushes it.
// HTTP/1.0 with Connection: close keeps the body unchunked and lets the
// server end the stream, which is what the forward-only scanners expect.
func writeRequest(w io.Writer, host string, q Query) error {
	bw := bufio.NewWriterSize(w, 512)

	fmt.Fprintf(bw, "GET /%s?stationId=%s&format=json&units=e&apiKey=%s HTTP/1.0\r\n",
		strings.TrimPrefix(q.Endpoint, "/"),
		url.QueryEscape(q.StationID),
		url.QueryEscape(q.APIKey),
	)
	fmt.Fprintf(bw, "Host: %s\r\n", host)
	bw.WriteString("Connection: close\r\n") //nolint:errcheck // sticky error surfaces on Flush
	bw.WriteString("\r\n")                  //nolint:errcheck // sticky error surfaces on Flush

	return bw.Flush()
}
