package hedge

import (
	"bytes"
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

func TestDefaultDestinationKey(t *testing.T) {
	tests := []struct {
		name   string
		method string
		url    string
		want   string
	}{
		{
			name:   "given plain url, then method scheme host path",
			method: http.MethodGet,
			url:    "https://api.example.com/users",
			want:   "GET https://api.example.com/users",
		},
		{
			name:   "given query params, then they are stripped",
			method: http.MethodGet,
			url:    "https://api.example.com/users?page=2&id=123",
			want:   "GET https://api.example.com/users",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.url, nil)

			assert.Equal(t, tt.want, DefaultDestinationKey(req))
		})
	}
}

func TestTransport_RoundTrip(t *testing.T) {
	type args struct {
		config      Config
		serverDelay time.Duration
	}

	tests := []struct {
		name            string
		args            args
		wantSC          int
		wantMinRequests int32
		wantMaxTime     time.Duration
	}{
		{
			name: "given fast response, then no hedge is sent",
			args: args{
				config: Config{
					TargetSLO:       100 * time.Millisecond,
					HedgeAt:         0.95,
					MaxHedges:       1,
					CancelOnSuccess: true,
				},
				serverDelay: 0,
			},
			wantSC:          http.StatusOK,
			wantMinRequests: 1,
		},
		{
			name: "given slow first response, then hedge wins and reduces latency",
			args: args{
				config: Config{
					TargetSLO:       100 * time.Millisecond,
					HedgeAt:         0.3,
					MaxHedges:       1,
					CancelOnSuccess: true,
				},
				serverDelay: 300 * time.Millisecond,
			},
			wantSC:          http.StatusOK,
			wantMinRequests: 2,
			wantMaxTime:     200 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestCount atomic.Int32

			server := httptest.NewServer(
				http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					count := requestCount.Add(1)
					// First request is slow, subsequent are fast.
					if count == 1 && tt.args.serverDelay > 0 {
						time.Sleep(tt.args.serverDelay)
					}
					w.WriteHeader(http.StatusOK)
				}),
			)
			defer server.Close()

			transport, err := NewTransport(http.DefaultTransport, tt.args.config)
			require.NoError(t, err)

			req, err := http.NewRequestWithContext(
				context.Background(),
				http.MethodGet,
				server.URL,
				nil,
			)
			require.NoError(t, err)

			start := time.Now()
			resp, err := transport.RoundTrip(req)
			elapsed := time.Since(start)

			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantSC, resp.StatusCode)
			resp.Body.Close()

			// Let racing goroutines settle.
			time.Sleep(tt.args.serverDelay + 50*time.Millisecond)

			assert.GreaterOrEqual(t, requestCount.Load(), tt.wantMinRequests)
			if tt.wantMaxTime > 0 {
				assert.Less(t, elapsed, tt.wantMaxTime)
			}
		})
	}
}

func TestTransport_RefusesNonIdempotentMethods(t *testing.T) {
	var requestCount atomic.Int32

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requestCount.Add(1)
			time.Sleep(100 * time.Millisecond)
			w.WriteHeader(http.StatusCreated)
		}),
	)
	defer server.Close()

	// Aggressive hedging that would duplicate a POST if permitted.
	transport, err := NewTransport(http.DefaultTransport, Config{
		TargetSLO:       50 * time.Millisecond,
		HedgeAt:         0.2,
		MaxHedges:       2,
		CancelOnSuccess: true,
	})
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(
		context.Background(),
		http.MethodPost,
		server.URL,
		bytes.NewBufferString(`{"amount":100}`),
	)
	require.NoError(t, err)

	resp, err := transport.RoundTrip(req)

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), requestCount.Load())
}

func TestTransport_HedgesNonIdempotentWhenAllowed(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	var requestCount atomic.Int32

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := requestCount.Add(1)
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, string(body))
			mu.Unlock()
			if count == 1 {
				time.Sleep(200 * time.Millisecond)
			}
			w.WriteHeader(http.StatusCreated)
		}),
	)
	defer server.Close()

	transport, err := NewTransport(http.DefaultTransport, Config{
		TargetSLO:       100 * time.Millisecond,
		HedgeAt:         0.3,
		MaxHedges:       1,
		CancelOnSuccess: true,
	}, WithAllowNonIdempotent())
	require.NoError(t, err)

	const payload = `{"idempotency_key":"abc123"}`
	req, err := http.NewRequestWithContext(
		context.Background(),
		http.MethodPost,
		server.URL,
		bytes.NewBufferString(payload),
	)
	require.NoError(t, err)

	resp, err := transport.RoundTrip(req)

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Both the primary and the hedge replayed the buffered body intact.
	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(bodies), 2)
	for _, b := range bodies {
		assert.Equal(t, payload, b)
	}
}

func TestTransport_ClassifierTurnsServerErrorsIntoFailures(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{
			name:       "given persistent 503s, then the race fails with all causes",
			statusCode: http.StatusServiceUnavailable,
			wantErr:    true,
		},
		{
			name:       "given a 404, then the response wins the race as-is",
			statusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(
				http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(tt.statusCode)
				}),
			)
			defer server.Close()

			transport, err := NewTransport(http.DefaultTransport, Config{
				TargetSLO:       40 * time.Millisecond,
				HedgeAt:         0.25,
				MaxHedges:       1,
				CancelOnSuccess: true,
			})
			require.NoError(t, err)

			req, err := http.NewRequestWithContext(
				context.Background(),
				http.MethodGet,
				server.URL,
				nil,
			)
			require.NoError(t, err)

			resp, err := transport.RoundTrip(req)

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.statusCode, resp.StatusCode)
				resp.Body.Close()
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAllAttemptsFailed)
			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.statusCode, statusErr.StatusCode)
		})
	}
}

func TestTransport_CustomClassifier(t *testing.T) {
	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}),
	)
	defer server.Close()

	// Accept everything: the 500 wins the race instead of failing it.
	transport, err := NewTransport(http.DefaultTransport, DefaultConfig(),
		WithResponseClassifier(func(*http.Response) bool { return true }),
	)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := transport.RoundTrip(req)

	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()
}

func TestTransport_CoalescesIdenticalGets(t *testing.T) {
	var requestCount atomic.Int32

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requestCount.Add(1)
			time.Sleep(100 * time.Millisecond)
			w.Write([]byte(`{"value":42}`))
		}),
	)
	defer server.Close()

	transport, err := NewTransport(http.DefaultTransport, Config{
		TargetSLO:       time.Second,
		HedgeAt:         0.95,
		MaxHedges:       1,
		CancelOnSuccess: true,
	}, WithCoalescing())
	require.NoError(t, err)

	var wg sync.WaitGroup
	bodies := make([]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := http.NewRequestWithContext(
				context.Background(),
				http.MethodGet,
				server.URL+"/data?b=2&a=1",
				nil,
			)
			require.NoError(t, err)

			resp, err := transport.RoundTrip(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			bodies[i] = string(body)
		}(i)
	}
	wg.Wait()

	// Both callers share one upstream request and both can read the body.
	assert.Equal(t, int32(1), requestCount.Load())
	assert.Equal(t, `{"value":42}`, bodies[0])
	assert.Equal(t, `{"value":42}`, bodies[1])
}

func TestNewClient(t *testing.T) {
	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)
	defer server.Close()

	client, err := NewClient(DefaultConfig())
	require.NoError(t, err)

	resp, err := client.Get(server.URL)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestNewClient_RejectsInvalidConfig(t *testing.T) {
	client, err := NewClient(Config{TargetSLO: -1, HedgeAt: 0.5, MaxHedges: 1})

	require.Error(t, err)
	assert.Nil(t, client)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
