package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c := New(&cfg)
	t.Cleanup(c.Close)
	return c
}

func drain(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	if err := resp.Body.Close(); err != nil {
		t.Logf("close body: %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		timeout time.Duration
		agent   string
	}{
		{"default config", DefaultConfig(), DefaultTimeout, defaultUserAgent},
		{"zero config", Config{}, DefaultTimeout, defaultUserAgent},
		{"custom", Config{DefaultTimeout: 3 * time.Second, UserAgent: "challenge-migration/1.2.0"}, 3 * time.Second, "challenge-migration/1.2.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newClient(t, tt.cfg)
			assert.Equal(t, tt.timeout, c.defaultTimeout)
			assert.Equal(t, tt.agent, c.userAgent)
			assert.Nil(t, c.limiter)
		})
	}
}

func TestGet_TimelineLookup(t *testing.T) {
	t.Parallel()

	srv := lookupServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "challenge-migration/test", r.Header.Get("User-Agent"))
		assert.Equal(t, "7", r.URL.Query().Get("typeId"))
		_, _ = w.Write([]byte(`[{"timelineTemplateId":"tt-1"}]`))
	})
	c := newClient(t, Config{UserAgent: "challenge-migration/test"})

	resp, err := c.Get(t.Context(), srv.URL+"/timelines?typeId=7")
	require.NoError(t, err)
	defer drain(t, resp)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"timelineTemplateId":"tt-1"}]`, string(body))
}

func TestDo_Deadlines(t *testing.T) {
	t.Parallel()

	slow := lookupServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		c := newClient(t, DefaultConfig())
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		resp, err := c.Get(ctx, slow.URL)
		drain(t, resp)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("default timeout applies without deadline", func(t *testing.T) {
		t.Parallel()
		c := newClient(t, Config{DefaultTimeout: 30 * time.Millisecond})

		resp, err := c.Get(t.Context(), slow.URL)
		drain(t, resp)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("caller deadline wins over default", func(t *testing.T) {
		t.Parallel()
		c := newClient(t, Config{DefaultTimeout: 10 * time.Millisecond})
		ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
		defer cancel()

		resp, err := c.Get(ctx, slow.URL)
		require.NoError(t, err)
		defer drain(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestDo_ConcurrentGroupLookups(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := lookupServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`[{"id":"` + r.URL.Query().Get("oldId") + `"}]`))
	})
	c := newClient(t, DefaultConfig())

	const lookups = 40
	var wg sync.WaitGroup
	errs := make(chan error, lookups)
	for i := range lookups {
		wg.Go(func() {
			body, _, err := c.GetBody(t.Context(), srv.URL+"/groups?oldId="+string(rune('a'+i%26)), nil)
			if err != nil {
				errs <- err
				return
			}
			if len(body) == 0 {
				errs <- io.ErrUnexpectedEOF
			}
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(lookups), hits.Load())
}

func TestDo_Hooks(t *testing.T) {
	t.Parallel()

	srv := lookupServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	c := newClient(t, DefaultConfig())

	var before []string
	var status int
	c.SetBeforeRequestHook(func(r *http.Request) { before = append(before, r.URL.Path) })
	c.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, err error) {
		require.NoError(t, err)
		status = resp.StatusCode
	})

	resp, err := c.Get(t.Context(), srv.URL+"/projects")
	require.NoError(t, err)
	drain(t, resp)

	assert.Equal(t, []string{"/projects"}, before)
	assert.Equal(t, http.StatusTeapot, status)
}

func TestGetBody(t *testing.T) {
	t.Parallel()

	t.Run("terms page with headers", func(t *testing.T) {
		t.Parallel()
		srv := lookupServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			w.Header().Set("X-Total-Pages", "3")
			_, _ = w.Write([]byte(`[{"id":"t-1","legacyId":21343}]`))
		})
		c := newClient(t, DefaultConfig())

		body, header, err := c.GetBody(t.Context(), srv.URL+"/terms?page=1", http.Header{"Authorization": {"Bearer abc"}})
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id":"t-1","legacyId":21343}]`, string(body))
		assert.Equal(t, "3", header.Get("X-Total-Pages"))
	})

	t.Run("non-2xx is a status error", func(t *testing.T) {
		t.Parallel()
		srv := lookupServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("group not found"))
		})
		c := newClient(t, DefaultConfig())

		_, _, err := c.GetBody(t.Context(), srv.URL, nil)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.Equal(t, "group not found", statusErr.Body)
	})

	t.Run("slow body within default timeout", func(t *testing.T) {
		t.Parallel()
		srv := lookupServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.(http.Flusher).Flush()
			time.Sleep(20 * time.Millisecond)
			_, _ = w.Write([]byte("[]"))
		})
		c := newClient(t, Config{DefaultTimeout: 2 * time.Second})

		body, _, err := c.GetBody(context.Background(), srv.URL, nil)
		require.NoError(t, err)
		assert.Equal(t, "[]", string(body))
	})
}

func TestDo_RateLimit(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := lookupServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})
	c := newClient(t, Config{RequestsPerSecond: 0.001, Burst: 1})
	require.NotNil(t, c.limiter)

	resp, err := c.Get(t.Context(), srv.URL)
	require.NoError(t, err)
	drain(t, resp)

	// the bucket is empty and the next token is far away
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	c := New(&cfg)
	assert.NotPanics(t, func() {
		c.Close()
		c.Close()
	})
}
