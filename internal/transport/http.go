package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/statico/meshtastic-cli-sub001/internal/connectors"
)

const (
	fromRadioPath = "/fromradio?all=false"
	toRadioPath   = "/toradio"
	nodesJSONPath = "/json/nodes"

	protobufContentType = "application/x-protobuf"

	defaultPollInterval   = time.Second
	defaultRequestTimeout = 5 * time.Second
	defaultMaxBackoff     = 30 * time.Second
	defaultBatchCeiling   = 50
	defaultYieldEvery     = 10
	defaultYieldPause     = 10 * time.Millisecond
	defaultErrorCeiling   = 15
	maxResponseBytes      = 1 << 20
)

// Options configures the HTTP polling transport. Zero values fall back to
// defaults; the numbers are tunable and not semantically load-bearing.
type Options struct {
	Address     string
	Port        int
	UseTLS      bool
	InsecureTLS bool

	PollInterval         time.Duration
	RequestTimeout       time.Duration
	MaxBackoff           time.Duration
	YieldPause           time.Duration
	BatchCeiling         int
	YieldEvery           int
	MaxConsecutiveErrors int
	QueueSize            int
}

func (o *Options) fillDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaultRequestTimeout
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = defaultMaxBackoff
	}
	if o.YieldPause <= 0 {
		o.YieldPause = defaultYieldPause
	}
	if o.BatchCeiling <= 0 {
		o.BatchCeiling = defaultBatchCeiling
	}
	if o.YieldEvery <= 0 {
		o.YieldEvery = defaultYieldEvery
	}
	if o.MaxConsecutiveErrors <= 0 {
		o.MaxConsecutiveErrors = defaultErrorCeiling
	}
}

// HTTPTransport polls a radio node over its HTTP API. Individual poll
// failures are retried with exponential backoff; only the consecutive-error
// ceiling is terminal, surfaced as a status event rather than an error.
type HTTPTransport struct {
	opts    Options
	baseURL string
	target  string
	client  *http.Client
	queue   *eventQueue

	mu         sync.Mutex
	cancel     context.CancelFunc
	started    bool
	closed     bool
	lastStatus connectors.ConnStatus
	hasStatus  bool

	wg sync.WaitGroup
}

func NewHTTPTransport(opts Options) *HTTPTransport {
	opts.fillDefaults()

	scheme := "http"
	if opts.UseTLS {
		scheme = "https"
	}
	target := strings.TrimSpace(opts.Address)
	if opts.Port > 0 {
		target = net.JoinHostPort(target, fmt.Sprintf("%d", opts.Port))
	}

	httpTransport := &http.Transport{}
	if opts.UseTLS && (opts.InsecureTLS || isLoopbackHost(opts.Address)) {
		// Radios serve self-signed certificates; accept them for loopback
		// targets and when the operator explicitly opted in.
		httpTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}

	return &HTTPTransport{
		opts:    opts,
		baseURL: scheme + "://" + target,
		target:  target,
		client: &http.Client{
			Timeout:   opts.RequestTimeout,
			Transport: httpTransport,
		},
		queue: newEventQueue(opts.QueueSize),
	}
}

func isLoopbackHost(host string) bool {
	host = strings.TrimSpace(host)
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)

	return ip != nil && ip.IsLoopback()
}

// Connect probes the radio once (best effort, polling retries anyway) and
// starts the polling loop.
func (t *HTTPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()

		return errors.New("transport is closed")
	}
	if t.started {
		t.mu.Unlock()

		return nil
	}
	t.started = true
	loopCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.mu.Unlock()

	logger := transportLogger("http", "target", t.target)
	t.emitStatus(connectors.ConnectionStateConnecting, nil)

	probeCtx, probeCancel := context.WithTimeout(ctx, t.opts.RequestTimeout)
	if _, err := t.fetchOne(probeCtx); err != nil {
		logger.Warn("reachability probe failed, polling will retry", "error", err)
	}
	probeCancel()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.pollLoop(loopCtx)
	}()

	return nil
}

func (t *HTTPTransport) pollLoop(ctx context.Context) {
	logger := transportLogger("http", "target", t.target)
	consecutiveErrors := 0

	for {
		if ctx.Err() != nil {
			return
		}

		received, err := t.drainBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveErrors++
			if consecutiveErrors >= t.opts.MaxConsecutiveErrors {
				logger.Error("consecutive poll error ceiling reached", "errors", consecutiveErrors, "error", err)
				t.emitStatus(connectors.ConnectionStateDisconnected, fmt.Errorf("%d consecutive poll failures: %w", consecutiveErrors, err))
				t.queue.close()

				return
			}
			delay := backoffDelay(t.opts.PollInterval, consecutiveErrors, t.opts.MaxBackoff)
			logger.Warn("poll failed, backing off", "errors", consecutiveErrors, "delay", delay, "error", err)
			t.emitStatus(connectors.ConnectionStateReconnecting, err)
			if !sleepWithContext(ctx, delay) {
				return
			}

			continue
		}

		consecutiveErrors = 0
		t.emitStatus(connectors.ConnectionStateConnected, nil)
		if received > 0 {
			logger.Debug("drained packets", "count", received)
		}
		if !sleepWithContext(ctx, t.opts.PollInterval) {
			return
		}
	}
}

// drainBatch pulls pending packets in rapid succession up to the batch
// ceiling, yielding briefly every few packets so the consumer is not starved.
// An empty body means the device has nothing more queued.
func (t *HTTPTransport) drainBatch(ctx context.Context) (int, error) {
	received := 0
	for received < t.opts.BatchCeiling {
		payload, err := t.fetchOne(ctx)
		if err != nil {
			return received, err
		}
		if len(payload) == 0 {
			break
		}
		t.queue.push(Event{Packet: payload})
		received++
		if received%t.opts.YieldEvery == 0 {
			if !sleepWithContext(ctx, t.opts.YieldPause) {
				return received, ctx.Err()
			}
		}
	}

	return received, nil
}

func (t *HTTPTransport) fetchOne(ctx context.Context) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, t.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, t.baseURL+fromRadioPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build fromradio request: %w", err)
	}
	req.Header.Set("Accept", protobufContentType)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll fromradio: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("poll fromradio: unexpected status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read fromradio body: %w", err)
	}

	return payload, nil
}

// Send transmits one encoded packet. Errors surface synchronously and are
// not retried here: outbound retry policy belongs to the caller.
func (t *HTTPTransport) Send(ctx context.Context, payload []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, t.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPut, t.baseURL+toRadioPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build toradio request: %w", err)
	}
	req.Header.Set("Content-Type", protobufContentType)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("put toradio: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("put toradio: unexpected status %d", resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	return nil
}

type nodesJSONResponse struct {
	Nodes []struct {
		Num     uint32 `json:"num"`
		IsLocal bool   `json:"is_local"`
	} `json:"nodes"`
}

// LocalNodeID consults the radio's JSON node listing once to discover the
// local node's identity. Best effort: callers treat failures as "unknown".
func (t *HTTPTransport) LocalNodeID(ctx context.Context) (uint32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, t.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, t.baseURL+nodesJSONPath, nil)
	if err != nil {
		return 0, fmt.Errorf("build nodes request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get nodes json: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("get nodes json: unexpected status %d", resp.StatusCode)
	}

	var parsed nodesJSONResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode nodes json: %w", err)
	}
	for _, node := range parsed.Nodes {
		if node.IsLocal {
			return node.Num, nil
		}
	}
	if len(parsed.Nodes) > 0 {
		return parsed.Nodes[0].Num, nil
	}

	return 0, errors.New("nodes json listed no nodes")
}

// Next delivers the next event to the single consumer, blocking until one is
// available or the transport disconnects.
func (t *HTTPTransport) Next(ctx context.Context) (Event, bool) {
	return t.queue.next(ctx)
}

// Close stops the polling loop, emits a final disconnected status, and wakes
// any parked consumer. Safe to call multiple times.
func (t *HTTPTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()

		return nil
	}
	t.closed = true
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
	t.emitStatus(connectors.ConnectionStateDisconnected, nil)
	t.queue.close()

	return nil
}

// DroppedEvents reports how many events were shed by the bounded queue.
func (t *HTTPTransport) DroppedEvents() uint64 {
	return t.queue.droppedCount()
}

// emitStatus pushes a status event, suppressing identical consecutive states.
func (t *HTTPTransport) emitStatus(state connectors.ConnectionState, err error) {
	status := connectors.ConnStatus{
		State:     state,
		Target:    t.target,
		Timestamp: time.Now(),
	}
	if err != nil {
		status.Err = err.Error()
	}

	t.mu.Lock()
	if t.hasStatus && t.lastStatus.State == status.State && t.lastStatus.Err == status.Err {
		t.mu.Unlock()

		return
	}
	t.lastStatus = status
	t.hasStatus = true
	t.mu.Unlock()

	t.queue.push(Event{Status: &status})
}

func backoffDelay(base time.Duration, consecutiveErrors int, ceiling time.Duration) time.Duration {
	delay := base
	for i := 1; i < consecutiveErrors; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	if delay > ceiling {
		return ceiling
	}

	return delay
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
