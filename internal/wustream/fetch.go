package wustream

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/pws-feed-service/internal/domain"
	"github.com/couchcryptid/pws-feed-service/internal/observability"
)

// readBufferSize is the bufio window over the TLS connection. It only
// amortizes ReadByte calls; records are never assembled here.
const readBufferSize = 512

// Dialer opens the transport connection. *tls.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Options configures a Client.
type Options struct {
	Host string
	Port int

	// DialTimeout bounds connection and TLS handshake.
	DialTimeout time.Duration
	// IOTimeout bounds the whole exchange after the connection is up.
	IOTimeout time.Duration

	// DecodeBufferSize is the per-record scratch size and therefore the
	// largest record the client will accept.
	DecodeBufferSize int

	// TLSConfig overrides the default client TLS settings.
	TLSConfig *tls.Config
	// Dialer overrides the TLS dialer. Tests use it to inject fakes.
	Dialer Dialer
}

// Client performs bounded streaming fetches against the WU API.
// A Client is safe for concurrent use; each Fetch owns its connection and
// scratch buffer.
type Client struct {
	host       string
	port       int
	dialer     Dialer
	ioTimeout  time.Duration
	bufferSize int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a WU streaming client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	dialer := opts.Dialer
	if dialer == nil {
		tlsCfg := opts.TLSConfig
		if tlsCfg == nil {
			tlsCfg = &tls.Config{ServerName: opts.Host, MinVersion: tls.VersionTLS12}
		}
		dialer = &tls.Dialer{
			NetDialer: &net.Dialer{Timeout: opts.DialTimeout},
			Config:    tlsCfg,
		}
	}
	bufferSize := opts.DecodeBufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultDecodeBufferSize
	}
	return &Client{
		host:       opts.Host,
		port:       opts.Port,
		dialer:     dialer,
		ioTimeout:  opts.IOTimeout,
		bufferSize: bufferSize,
		metrics:    metrics,
		logger:     logger,
	}
}

// Query describes one fetch.
type Query struct {
	Endpoint    string
	StationID   string
	APIKey      string
	ArrayMarker string
	// MaxData caps how many records are decoded. The effective cap is
	// min(MaxData, len(out)).
	MaxData int
}

// Fetch connects, requests q, and decodes up to the effective capacity of
// records into out in stream order. It never writes past that capacity and
// only writes a slot once its record decoded successfully. The connection is
// closed before Fetch returns on every path.
func (c *Client) Fetch(ctx context.Context, q Query, out []domain.Record) Result {
	start := time.Now()
	logger := c.logger.With("fetch_id", uuid.NewString(), "station_id", q.StationID)

	res := c.fetch(ctx, logger, q, out)

	c.metrics.FetchesTotal.WithLabelValues(res.Outcome()).Inc()
	c.metrics.RecordsDecoded.Add(float64(res.Count))
	c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if !res.TotalFailure() {
		c.metrics.LastSuccessfulFetch.SetToCurrentTime()
	}
	return res
}

func (c *Client) fetch(ctx context.Context, logger *slog.Logger, q Query, out []domain.Record) Result {
	capacity := max(min(q.MaxData, len(out)), 0)

	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		logger.Error("failed to connect to WU API server", "addr", addr, "error", err)
		return failed(StageConnecting, fmt.Errorf("%w: %s: %w", ErrConnection, addr, err))
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debug("close connection", "error", err)
		}
	}()
	logger.Debug("connected to WU API server", "addr", addr)

	stop := c.bindDeadline(ctx, conn)
	defer stop()

	if err := writeRequest(conn, c.host, q); err != nil {
		logger.Error("failed to send request", "endpoint", q.Endpoint, "error", err)
		return failed(StageSending, fmt.Errorf("%w: %w", ErrSend, err))
	}

	br := bufio.NewReaderSize(conn, readBufferSize)

	if err := CheckStatus(br); err != nil {
		logger.Error("unexpected response status", "error", err)
		return failed(StageAwaitingStatus, err)
	}

	if err := LocateArray(br, []byte(q.ArrayMarker)); err != nil {
		logger.Error("observation array not found", "marker", q.ArrayMarker, "error", err)
		return failed(StageLocatingArray, err)
	}

	dec := NewDecoder(make([]byte, c.bufferSize))
	n, reason, err := decodeArray(br, dec, out[:capacity])
	if err != nil {
		logger.Warn("failed to parse weather record",
			"decoded", n,
			"kind", KindOf(err),
			"error", err,
		)
		return Result{Count: n, Stage: StageDecoding, Stop: StopFailed, Err: err}
	}

	logger.Info("fetch complete", "decoded", n, "stop", reason)
	return Result{Count: n, Stage: StageDone, Stop: reason}
}

// decodeArray fills out from r, which must be positioned just after the array
// marker. It stops at the array end, when out is full, or on the first
// failure. When out fills, nothing after the last separator is consumed.
func decodeArray(r io.ByteReader, dec *Decoder, out []domain.Record) (int, StopReason, error) {
	n := 0
	for n < len(out) {
		if err := dec.DecodeOne(r, &out[n]); err != nil {
			if errors.Is(err, ErrArrayEnd) {
				return n, StopArrayEnd, nil
			}
			return n, StopFailed, err
		}
		n++

		sep, err := SkipToNextElement(r)
		if err != nil {
			return n, StopFailed, err
		}
		if sep == SeparatorArrayEnd {
			return n, StopArrayEnd, nil
		}
	}
	return n, StopCapacity, nil
}

// bindDeadline applies the I/O timeout and makes ctx cancellation unblock any
// pending read or write. The returned func detaches the cancellation hook.
func (c *Client) bindDeadline(ctx context.Context, conn net.Conn) func() bool {
	var deadline time.Time
	if c.ioTimeout > 0 {
		deadline = time.Now().Add(c.ioTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if !deadline.IsZero() {
		_ = conn.SetDeadline(deadline)
	}
	return context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
}
