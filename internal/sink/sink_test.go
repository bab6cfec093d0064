package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReading(id string) models.Reading {
	return models.Reading{
		ID:                id,
		Timestamp:         time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC),
		Temperature:       20.5,
		Occupancy:         3,
		HVACOn:            true,
		DayOfWeek:         "Monday",
		EnergyConsumption: 64.5,
	}
}

func readingFrames(ids ...string) <-chan models.LiveFrame {
	frames := make(chan models.LiveFrame, len(ids)+1)
	frames <- models.NewLiveFrame(0, models.FrameStats)
	for i, id := range ids {
		f := models.NewLiveFrame(int64(i+1), models.FrameReading)
		r := testReading(id)
		f.Reading = &r
		frames <- f
	}
	close(frames)
	return frames
}

func TestKafka_PublishesReadingsAsJSON(t *testing.T) {
	producer := mocks.NewSyncProducer(t, ProducerConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var r models.Reading
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		if r.ID != "a" || r.EnergyConsumption != 64.5 {
			return errors.New("unexpected reading payload")
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	s := NewKafkaWithProducer(producer, "")
	assert.Equal(t, DefaultTopic, s.topic)

	written, failed := Forward(context.Background(), s, readingFrames("a", "b"))
	assert.Equal(t, 1, written)
	assert.Equal(t, 1, failed)
	require.NoError(t, s.Close())
}

func TestNewKafka_RequiresBrokers(t *testing.T) {
	_, err := NewKafka(nil, "topic")
	assert.Error(t, err)
}

func TestInflux_WritesLineProtocol(t *testing.T) {
	var (
		mu    sync.Mutex
		lines []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"name":"influxdb","status":"pass","message":"ready","checks":[]}`)
		case "/api/v2/write":
			assert.Equal(t, "energy", r.URL.Query().Get("bucket"))
			assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			lines = append(lines, strings.TrimSpace(string(body)))
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	s, err := NewInflux(context.Background(), InfluxConfig{URL: server.URL, Token: "secret", Org: "nexus", Bucket: "energy"})
	require.NoError(t, err)
	defer s.Close()

	written, failed := Forward(context.Background(), s, readingFrames("r-1"))
	assert.Equal(t, 1, written)
	assert.Equal(t, 0, failed)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], Measurement+",day_of_week=Monday,holiday=No "), lines[0])
	assert.Contains(t, lines[0], "energy_consumption=64.5")
	assert.Contains(t, lines[0], `reading_id="r-1"`)
}

func TestInflux_RejectsIncompleteConfig(t *testing.T) {
	_, err := NewInflux(context.Background(), InfluxConfig{URL: "http://localhost:8086"})
	assert.Error(t, err)
}

func TestForward_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	written, failed := Forward(ctx, NewKafkaWithProducer(mocks.NewSyncProducer(t, nil), "t"), make(chan models.LiveFrame))
	assert.Zero(t, written)
	assert.Zero(t, failed)
}
