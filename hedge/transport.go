package hedge

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ResponseClassifier decides whether an HTTP response counts as success
// for the race. A rejected response becomes an attempt failure (its body
// is closed and a *StatusError recorded), giving a racing hedge the chance
// to win instead.
type ResponseClassifier func(resp *http.Response) bool

// DefaultClassifier treats any response below 500 as success. Server
// errors lose the race like transport errors do; 4xx responses win because
// repeating an invalid request cannot improve the answer.
func DefaultClassifier(resp *http.Response) bool {
	return resp.StatusCode < 500
}

// DestinationKeyFunc derives the key under which a request's latencies are
// bucketed. Keys must not embed volatile request data (query params, IDs)
// or the learned distribution fragments into useless single-sample
// buckets.
type DestinationKeyFunc func(req *http.Request) string

// DefaultDestinationKey buckets by "METHOD scheme://host/path", dropping
// the query string.
func DefaultDestinationKey(req *http.Request) string {
	return req.Method + " " + req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
}

// Transport is an http.RoundTripper that hedges requests through a Racer.
//
// Request bodies are buffered in memory so hedge attempts can replay them.
// Non-idempotent methods are not hedged: they pass straight through as a
// single attempt (and are logged), unless WithAllowNonIdempotent opts in.
//
// Example:
//
//	transport, err := hedge.NewTransport(http.DefaultTransport, hedge.Config{
//	    TargetSLO: time.Second,
//	    HedgeAt:   0.95,
//	    MaxHedges: 1,
//	    Adaptive:  true,
//	})
//	client := &http.Client{Transport: transport}
type Transport struct {
	next       http.RoundTripper
	racer      *Racer
	classifier ResponseClassifier
	keyFunc    DestinationKeyFunc
	logger     zerolog.Logger
	allowAll   bool
	group      *singleflight.Group
}

// NewTransport wraps next with hedging per the given policy. A nil next
// uses http.DefaultTransport. Invalid policies fail here.
func NewTransport(next http.RoundTripper, cfg Config, opts ...Option) (*Transport, error) {
	if next == nil {
		next = http.DefaultTransport
	}
	o := newOptions(opts...)

	// Losing responses must be closed or their connections leak.
	racer, err := New(cfg, append(opts[:len(opts):len(opts)], WithDiscard(discardResponse))...)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		next:       next,
		racer:      racer,
		classifier: o.classifier,
		keyFunc:    o.keyFunc,
		logger:     o.logger,
		allowAll:   o.allowNonIdempotent,
	}
	if t.classifier == nil {
		t.classifier = DefaultClassifier
	}
	if t.keyFunc == nil {
		t.keyFunc = DefaultDestinationKey
	}
	if o.coalesce {
		t.group = &singleflight.Group{}
	}
	return t, nil
}

// NewClient returns an *http.Client whose transport hedges every request
// per the given policy.
//
//	client := hedge.NewClient(hedge.DefaultConfig())
//	resp, err := client.Get("https://api.example.com/users")
func NewClient(cfg Config, opts ...Option) (*http.Client, error) {
	transport, err := NewTransport(nil, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport}, nil
}

// Racer exposes the underlying engine, e.g. for snapshots.
func (t *Transport) Racer() *Racer {
	return t.racer
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.allowAll && !idempotentMethod(req.Method) {
		t.logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL.Redacted()).
			Msg("refusing to hedge non-idempotent request, sending single attempt")
		return t.next.RoundTrip(req)
	}
	if t.group != nil && req.Method == http.MethodGet && req.Body == nil {
		return t.coalesced(req)
	}
	return t.race(req)
}

// race runs one hedged call for the request.
func (t *Transport) race(req *http.Request) (*http.Response, error) {
	// Buffer the body so every attempt can replay it.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	destination := t.keyFunc(req)

	res, err := t.racer.Do(req.Context(), destination, func(ctx context.Context, attempt int) (any, error) {
		attemptReq := req.Clone(ctx)
		if bodyBytes != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			attemptReq.ContentLength = int64(len(bodyBytes))
		}

		resp, err := t.next.RoundTrip(attemptReq)
		if err != nil {
			return nil, err
		}
		if !t.classifier(resp) {
			code := resp.StatusCode
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, &StatusError{StatusCode: code}
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return res.Value.(*http.Response), nil
}

// sharedResponse is a race result fanned out to coalesced callers.
type sharedResponse struct {
	resp *http.Response
	body []byte
}

// clone hands each caller an independently readable copy.
func (s *sharedResponse) clone() *http.Response {
	resp := *s.resp
	resp.Body = io.NopCloser(bytes.NewReader(s.body))
	resp.ContentLength = int64(len(s.body))
	return &resp
}

// coalesced funnels identical concurrent GETs into one hedged race.
func (t *Transport) coalesced(req *http.Request) (*http.Response, error) {
	key := coalesceKey(req)
	v, err, _ := t.group.Do(key, func() (any, error) {
		resp, err := t.race(req)
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		return &sharedResponse{resp: resp, body: body}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sharedResponse).clone(), nil
}

// discardResponse releases a losing attempt's response.
func discardResponse(value any) {
	resp, ok := value.(*http.Response)
	if !ok || resp == nil || resp.Body == nil {
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// idempotentMethod reports whether the method is safe to duplicate per
// RFC 9110. PUT and DELETE are idempotent on paper but commonly carry
// side effects, so only the safe methods hedge by default.
func idempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
