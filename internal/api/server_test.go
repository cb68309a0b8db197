package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/household/internal/auth"
	"github.com/theirongolddev/household/internal/blob"
	"github.com/theirongolddev/household/internal/store"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv    *Server
	store  *store.Store
	bucket *blob.FSBucket
	h      http.Handler
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	st, err := store.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	bucket, err := blob.NewFSBucket(t.TempDir())
	require.NoError(t, err)

	cfg := Config{
		Store:        st,
		Bucket:       bucket,
		EventsBuffer: 50,
		Now:          func() time.Time { return testNow },
	}
	for _, m := range mutate {
		m(&cfg)
	}
	srv := New(cfg)
	return &testEnv{srv: srv, store: st, bucket: bucket, h: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, rec)["error"].(string)
}

func TestHealthAndStatus(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	e.srv.Publish("test", "", nil)
	rec = e.do(t, http.MethodGet, "/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[Status](t, rec)
	assert.Equal(t, int64(2), st.RequestCount)
	assert.Equal(t, 1, st.EventCount)
	assert.False(t, st.AuthEnabled)
	assert.False(t, st.OrdersEnabled)
}

func TestRequestIDIsEchoed(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", nil, requestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", errorOf(t, rec))
}

func TestAuthGuardsBillingRoutes(t *testing.T) {
	issuer, err := auth.NewIssuer(auth.Config{
		Secret:   []byte("0123456789abcdef0123"),
		Issuer:   "household",
		Audience: "household-api",
		TTL:      time.Hour,
	})
	require.NoError(t, err)
	e := newTestEnv(t, func(c *Config) {
		c.Issuer = issuer
		c.Allow = auth.NewAllowlist([]string{"me@example.com"})
	})

	rec := e.do(t, http.MethodGet, "/projects/ccbilling/cards", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authenticated", errorOf(t, rec))

	good, err := issuer.Issue("me@example.com")
	require.NoError(t, err)
	rec = e.do(t, http.MethodGet, "/projects/ccbilling/cards", nil, "Authorization", "Bearer "+good)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	other, err := issuer.Issue("stranger@example.com")
	require.NoError(t, err)
	rec = e.do(t, http.MethodGet, "/projects/ccbilling/cards", nil, "Authorization", "Bearer "+other)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/projects/genproj/api/capabilities", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "genproj is public")
}

func TestPublishEventRingBuffer(t *testing.T) {
	s := New(Config{EventsBuffer: 2})

	s.Publish("a", "", nil)
	s.Publish("b", "", nil)
	s.Publish("c", "", nil)

	events := s.Events()
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].ID)
	assert.Equal(t, int64(3), events[1].ID)
}

func TestPublishDropsForSlowSubscribers(t *testing.T) {
	s := New(Config{})
	ch := make(chan Event, 1)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	s.Publish("first", "", nil)
	s.Publish("second", "", nil)

	ev := <-ch
	assert.Equal(t, "first", ev.Type)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected buffered event %q", ev.Type)
	default:
	}
}

func TestStreamDeliversEvents(t *testing.T) {
	e := newTestEnv(t)
	ts := httptest.NewServer(e.h)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/stream", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var typ, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				typ = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "":
				return typ, data
			}
		}
	}

	typ, _ := readEvent()
	assert.Equal(t, "status", typ)

	require.Eventually(t, func() bool { return e.srv.snapshotStatus().SubscriberCount == 1 },
		time.Second, 10*time.Millisecond)
	e.srv.Publish(EventChargesAssigned, "local", map[string]any{"count": 2})

	typ, data := readEvent()
	assert.Equal(t, EventChargesAssigned, typ)
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, "local", ev.User)
	assert.EqualValues(t, 2, ev.Data["count"])

	cancel()
}

func TestRunReleasesStreamsOnShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	st, err := store.OpenMemory(context.Background())
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	srv := New(Config{Addr: addr, Store: st})
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	client := &http.Client{}
	defer client.CloseIdleConnections()
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = client.Get("http://" + addr + "/v1/stream")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer func() { _ = resp.Body.Close() }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(4 * time.Second):
		t.Fatal("server did not shut down")
	}
}
