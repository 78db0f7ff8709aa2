//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/pws-feed-service/internal/observability"
	"github.com/couchcryptid/pws-feed-service/internal/wustream"
)

const (
	kafkaImage    = "confluentinc/confluent-local:7.5.0"
	testStationID = "KMAHANOV10"
	testEndpoint  = "v2/pws/observations/all/1day"
	testMarker    = `"observations":[`
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("pws-feed-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func observation(minute int) string {
	return fmt.Sprintf(`{"stationID":%q,"obsTimeLocal":"2024-04-26 15:%02d:57","humidityAvg":%d,`+
		`"imperial":{"tempAvg":64.5,"precipRate":0.25,"precipTotal":0.5}}`, testStationID, minute, 60+minute)
}

// wuServer serves a WU-shaped response over TLS. Each request returns the
// observations listed by the next entry of polls; the last entry repeats.
func wuServer(t *testing.T, polls ...[]int) (*httptest.Server, wustream.Options) {
	t.Helper()

	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apiKey") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mu.Lock()
		minutes := polls[min(calls, len(polls)-1)]
		calls++
		mu.Unlock()

		objs := make([]string, len(minutes))
		for i, m := range minutes {
			objs[i] = observation(m)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"observations":[`+strings.Join(objs, ",")+`]}`)
	}))
	t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return srv, wustream.Options{
		Host:        host,
		Port:        port,
		DialTimeout: 2 * time.Second,
		IOTimeout:   5 * time.Second,
		TLSConfig:   srv.Client().Transport.(*http.Transport).TLSClientConfig.Clone(),
	}
}

func newClient(opts wustream.Options) *wustream.Client {
	return wustream.NewClient(opts, observability.NewMetricsForTesting(), discardLogger())
}

func testQuery(maxData int) wustream.Query {
	return wustream.Query{
		Endpoint:    testEndpoint,
		StationID:   testStationID,
		APIKey:      "secret",
		ArrayMarker: testMarker,
		MaxData:     maxData,
	}
}
