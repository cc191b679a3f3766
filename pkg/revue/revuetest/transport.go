// Package revuetest provides a scripted transport for exercising revue.Client
// without a network.
package revuetest

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sync"
)

// ErrQueueEmpty is returned by Transport.Do when no response is queued.
var ErrQueueEmpty = errors.New("revuetest: no queued response")

// RecordedRequest is a request seen by Transport, with its body already read.
type RecordedRequest struct {
	Method string
	URL    string
	Path   string
	Header http.Header
	Body   []byte
}

type queued struct {
	status int
	header http.Header
	body   string
	err    error
}

// Transport replays queued responses in order and records every request.
// It satisfies revue.HTTPDoer.
type Transport struct {
	mu       sync.Mutex
	queue    []queued
	requests []RecordedRequest
}

// NewTransport returns an empty Transport.
func NewTransport() *Transport {
	return &Transport{}
}

// Append queues a response with the given status and body.
func (t *Transport) Append(status int, body string) *Transport {
	return t.AppendWithHeader(status, http.Header{"Content-Type": []string{"application/json"}}, body)
}

// AppendWithHeader queues a response with explicit headers.
func (t *Transport) AppendWithHeader(status int, header http.Header, body string) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, queued{status: status, header: header, body: body})
	return t
}

// AppendError queues a transport failure.
func (t *Transport) AppendError(err error) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, queued{err: err})
	return t
}

// Requests returns the requests seen so far.
func (t *Transport) Requests() []RecordedRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RecordedRequest, len(t.requests))
	copy(out, t.requests)
	return out
}

// Pending returns the number of queued responses not yet consumed.
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Do implements revue.HTTPDoer.
func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		_ = req.Body.Close()
		body = b
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests = append(t.requests, RecordedRequest{
		Method: req.Method,
		URL:    req.URL.String(),
		Path:   req.URL.Path,
		Header: req.Header.Clone(),
		Body:   body,
	})

	if len(t.queue) == 0 {
		return nil, ErrQueueEmpty
	}
	next := t.queue[0]
	t.queue = t.queue[1:]

	if next.err != nil {
		return nil, next.err
	}

	return &http.Response{
		StatusCode:    next.status,
		Status:        http.StatusText(next.status),
		Header:        next.header.Clone(),
		Body:          io.NopCloser(bytes.NewBufferString(next.body)),
		ContentLength: int64(len(next.body)),
		Request:       req,
	}, nil
}
