package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/energynexus/nexus-cli/internal/api"
	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_Framing(t *testing.T) {
	stream := ": keep-alive\r\n" +
		"retry: 2500\r\n" +
		"event: update\r\n" +
		"id: 7\r\n" +
		"data: {\"a\":\r\n" +
		"data: 1}\r\n" +
		"\r\n" +
		"data:no-space\n" +
		"\n" +
		"event: status\n" +
		"\n" +
		"event: status\n" +
		"data: IDLE\n" +
		"\n" +
		"data: truncated"

	dec := NewDecoder(strings.NewReader(stream))

	ev, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "update", ev.Name)
	assert.Equal(t, "7", ev.ID)
	assert.Equal(t, "{\"a\":\n1}", ev.Data)
	assert.Equal(t, 2500*time.Millisecond, dec.Retry())

	ev, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "message", ev.Name)
	assert.Equal(t, "no-space", ev.Data)

	// an event block without data is dropped along with its name
	ev, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "status", ev.Name)
	assert.Equal(t, "IDLE", ev.Data)

	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func reading(id string) models.Reading {
	return models.Reading{ID: id}
}

func ids(readings []models.Reading) []string {
	out := make([]string, 0, len(readings))
	for _, r := range readings {
		out = append(out, r.ID)
	}
	return out
}

func TestBuffer_CapAndEviction(t *testing.T) {
	buf := NewBuffer(3)
	for i := 1; i <= 5; i++ {
		assert.True(t, buf.Push(reading(fmt.Sprint(i))))
	}
	assert.Equal(t, []string{"5", "4", "3"}, ids(buf.Readings()))
	assert.Equal(t, 3, buf.Len())

	// an evicted ID may come back
	assert.True(t, buf.Push(reading("1")))
	assert.Equal(t, []string{"1", "5", "4"}, ids(buf.Readings()))
}

func TestBuffer_DuplicateKeepsFirstSeen(t *testing.T) {
	buf := NewBuffer(30)
	buf.Push(models.Reading{ID: "a", Temperature: 20})
	buf.Push(reading("b"))

	assert.False(t, buf.Push(models.Reading{ID: "a", Temperature: 99}))
	got := buf.Readings()
	assert.Equal(t, []string{"b", "a"}, ids(got))
	assert.Equal(t, 20.0, got[1].Temperature)
}

func TestBuffer_NeverExceedsCapOrDuplicates(t *testing.T) {
	buf := NewBuffer(30)
	for i := 0; i < 500; i++ {
		buf.Push(reading(fmt.Sprint(i % 45)))
		seen := map[string]bool{}
		for _, r := range buf.Readings() {
			require.False(t, seen[r.ID], "duplicate %s", r.ID)
			seen[r.ID] = true
		}
		require.LessOrEqual(t, buf.Len(), 30)
	}
}

func TestBuffer_Seed(t *testing.T) {
	buf := NewBuffer(2)
	buf.Push(reading("old"))
	buf.Seed([]models.Reading{reading("c"), reading("c"), reading("b"), reading("a")})
	assert.Equal(t, []string{"c", "b"}, ids(buf.Readings()))
	assert.False(t, buf.Push(reading("b")))
}

type scriptedOpener struct {
	mu      sync.Mutex
	calls   int
	streams []string
	err     error
}

func (o *scriptedOpener) OpenStream(ctx context.Context) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	if len(o.streams) == 0 {
		return nil, &api.Error{Kind: api.KindNetwork, Message: "refused"}
	}
	s := o.streams[0]
	o.streams = o.streams[1:]
	return io.NopCloser(strings.NewReader(s)), nil
}

func (o *scriptedOpener) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func fastOptions() Options {
	return Options{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, MaxRetries: 3}
}

func TestSubscriber_DispatchesAndReconnects(t *testing.T) {
	update := `{"stats":{"totalRecords":3},"recentReadings":[{"id":3,"temperature":22}]}`
	opener := &scriptedOpener{streams: []string{
		"event: update\ndata: " + update + "\n\n",
		"event: status\ndata: STREAMING\n\nevent: status\ndata: BOGUS\n\nevent: other\ndata: x\n\n",
	}}

	var (
		mu       sync.Mutex
		updates  []*models.ReportUpdate
		statuses []models.SystemStatus
		events   int
	)
	gaveUp := make(chan error, 1)
	sub := NewSubscriber(opener, Handlers{
		OnUpdate: func(u *models.ReportUpdate) {
			mu.Lock()
			updates = append(updates, u)
			mu.Unlock()
		},
		OnStatus: func(s models.SystemStatus) {
			mu.Lock()
			statuses = append(statuses, s)
			mu.Unlock()
		},
		OnEvent: func(models.StreamEvent) {
			mu.Lock()
			events++
			mu.Unlock()
		},
		OnGiveUp: func(err error) { gaveUp <- err },
	}, fastOptions())

	sub.Start(context.Background())
	defer sub.Stop()

	select {
	case err := <-gaveUp:
		assert.True(t, api.IsKind(err, api.KindNetwork))
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber never gave up")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 1)
	require.NotNil(t, updates[0].Newest)
	assert.Equal(t, "3", updates[0].Newest.ID)
	assert.Equal(t, int64(3), updates[0].Stats.TotalRecords)
	assert.Equal(t, []models.SystemStatus{models.StatusStreaming}, statuses)
	assert.Equal(t, 4, events)
	// two streams, then three failed reconnects
	assert.Equal(t, 5, opener.Calls())
	assert.False(t, sub.Running())
}

func TestSubscriber_AuthFailureIsPermanent(t *testing.T) {
	opener := &scriptedOpener{err: &api.Error{Kind: api.KindAuthentication, Code: api.CodeSessionInvalid}}
	var gaveUp atomic.Bool
	sub := NewSubscriber(opener, Handlers{OnGiveUp: func(error) { gaveUp.Store(true) }}, fastOptions())

	sub.Start(context.Background())
	require.Eventually(t, func() bool { return !sub.Running() }, 2*time.Second, time.Millisecond)
	assert.Equal(t, 1, opener.Calls())
	assert.False(t, gaveUp.Load())
}

type blockingOpener struct {
	opened chan struct{}
}

func (o *blockingOpener) OpenStream(ctx context.Context) (io.ReadCloser, error) {
	pr, pw := io.Pipe()
	go func() {
		<-ctx.Done()
		pw.CloseWithError(ctx.Err())
	}()
	o.opened <- struct{}{}
	return pr, nil
}

func TestSubscriber_StartReplacesConnection(t *testing.T) {
	opener := &blockingOpener{opened: make(chan struct{}, 2)}
	var disconnects atomic.Int32
	sub := NewSubscriber(opener, Handlers{OnDisconnect: func(error) { disconnects.Add(1) }}, fastOptions())

	sub.Start(context.Background())
	<-opener.opened
	sub.Start(context.Background())
	<-opener.opened
	assert.True(t, sub.Running())

	sub.Stop()
	assert.False(t, sub.Running())
	// cancellation is not a disconnect
	assert.Equal(t, int32(0), disconnects.Load())
}

func TestSubscriber_StopIsIdempotent(t *testing.T) {
	sub := NewSubscriber(&scriptedOpener{err: errors.New("x")}, Handlers{}, fastOptions())
	sub.Stop()
	sub.Cancel()
	assert.False(t, sub.Running())
}
