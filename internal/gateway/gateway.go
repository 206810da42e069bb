// Package gateway implements a thin async client over the remote search
// index's REST surface: document search, index CRUD, document upload, and
// indexer status/run polling, wrapped in retry-with-backoff and a circuit
// breaker so permanent failures surface immediately while transient ones
// are absorbed.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/aman-cerp/retrieval-core/internal/errors"
	"github.com/aman-cerp/retrieval-core/internal/model"
)

// APIVersion is the remote index REST API version this gateway targets.
const APIVersion = "2025-05-01-preview"

const (
	maxUploadBatchDocs  = 1000
	maxUploadBatchBytes = 16 * 1024 * 1024
	defaultPoolSize     = 32
)

// Gateway is a single, concurrency-safe client for one remote index.
type Gateway struct {
	endpoint       string
	apiKey         string
	indexName      string
	httpClient     *http.Client
	transport      *http.Transport
	attemptTimeout time.Duration
	retryCfg       apierrors.RetryConfig
	breaker        *apierrors.CircuitBreaker
	logger         *slog.Logger
}

// Option configures a Gateway at construction time.
type Option func(*Gateway)

// WithRetryConfig overrides the default gateway retry policy.
func WithRetryConfig(cfg apierrors.RetryConfig) Option {
	return func(g *Gateway) { g.retryCfg = cfg }
}

// WithCircuitBreaker overrides the default circuit breaker.
func WithCircuitBreaker(cb *apierrors.CircuitBreaker) Option {
	return func(g *Gateway) { g.breaker = cb }
}

// WithLogger overrides the default slog.Logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithPoolSize overrides the default HTTP connection pool size (32).
func WithPoolSize(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.transport.MaxIdleConns = n
			g.transport.MaxIdleConnsPerHost = n
			g.transport.MaxConnsPerHost = n * 2
		}
	}
}

// New creates a Gateway bound to one index. endpoint and apiKey and
// indexName must be non-empty — callers are expected to have validated
// these via config.Load before construction.
func New(endpoint, apiKey, indexName string, timeout time.Duration, opts ...Option) *Gateway {
	transport := &http.Transport{
		MaxIdleConns:        defaultPoolSize,
		MaxIdleConnsPerHost: defaultPoolSize,
		MaxConnsPerHost:     defaultPoolSize * 2,
		IdleConnTimeout:     90 * time.Second,
	}

	g := &Gateway{
		endpoint:       endpoint,
		apiKey:         apiKey,
		indexName:      indexName,
		transport:      transport,
		attemptTimeout: timeout,
		// The HTTP client carries no static Timeout: per-attempt deadlines
		// are applied via context so retry backoff is never bypassed.
		httpClient: &http.Client{Transport: transport},
		retryCfg:   apierrors.GatewayRetryConfig(),
		breaker:    apierrors.NewCircuitBreaker("search-gateway", apierrors.WithMaxFailures(5), apierrors.WithResetTimeout(30*time.Second)),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Close releases the gateway's underlying HTTP connections.
func (g *Gateway) Close() {
	g.transport.CloseIdleConnections()
}

// Search executes a single search request against the bound index.
func (g *Gateway) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	correlationID := uuid.NewString()
	path := fmt.Sprintf("/indexes/%s/docs/search", url.PathEscape(g.indexName))

	var resp SearchResponse
	err := g.doJSON(ctx, http.MethodPost, path, req, &resp, correlationID)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetIndex retrieves the schema of the bound index.
func (g *Gateway) GetIndex(ctx context.Context) (json.RawMessage, error) {
	path := fmt.Sprintf("/indexes/%s", url.PathEscape(g.indexName))
	var raw json.RawMessage
	if err := g.doJSON(ctx, http.MethodGet, path, nil, &raw, uuid.NewString()); err != nil {
		return nil, err
	}
	return raw, nil
}

// CreateIndex creates or replaces the bound index using the given schema.
func (g *Gateway) CreateIndex(ctx context.Context, schema json.RawMessage) error {
	path := fmt.Sprintf("/indexes/%s", url.PathEscape(g.indexName))
	return g.doJSON(ctx, http.MethodPut, path, schema, nil, uuid.NewString())
}

// DeleteIndex deletes the bound index.
func (g *Gateway) DeleteIndex(ctx context.Context) error {
	path := fmt.Sprintf("/indexes/%s", url.PathEscape(g.indexName))
	return g.doJSON(ctx, http.MethodDelete, path, nil, nil, uuid.NewString())
}

// ListIndexes lists every index visible to the configured credentials.
func (g *Gateway) ListIndexes(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := g.doJSON(ctx, http.MethodGet, "/indexes", nil, &raw, uuid.NewString()); err != nil {
		return nil, err
	}
	return raw, nil
}

type uploadBatch struct {
	Value []Document `json:"value"`
}

// UploadDocuments uploads docs to the bound index in batches honoring the
// remote index's limits (≤1000 documents, ≤16 MiB per batch), stamping
// each document with the given action.
func (g *Gateway) UploadDocuments(ctx context.Context, docs []Document, action IndexAction) error {
	path := fmt.Sprintf("/indexes/%s/docs/index", url.PathEscape(g.indexName))

	for _, batch := range batchDocuments(docs, action) {
		if err := g.doJSON(ctx, http.MethodPost, path, batch, nil, uuid.NewString()); err != nil {
			return err
		}
	}
	return nil
}

// DeleteDocuments deletes documents identified by key from the bound index.
func (g *Gateway) DeleteDocuments(ctx context.Context, keyField string, keys []string) error {
	docs := make([]Document, len(keys))
	for i, k := range keys {
		docs[i] = Document{keyField: k}
	}
	return g.UploadDocuments(ctx, docs, ActionDelete)
}

// batchDocuments splits docs into upload batches respecting the size and
// count limits, stamping each with "@search.action".
func batchDocuments(docs []Document, action IndexAction) []uploadBatch {
	var batches []uploadBatch
	var current []Document
	currentBytes := 0

	flush := func() {
		if len(current) > 0 {
			batches = append(batches, uploadBatch{Value: current})
			current = nil
			currentBytes = 0
		}
	}

	for _, d := range docs {
		stamped := make(Document, len(d)+1)
		for k, v := range d {
			stamped[k] = v
		}
		stamped["@search.action"] = string(action)

		size, _ := json.Marshal(stamped)
		if len(current) >= maxUploadBatchDocs || (currentBytes+len(size)) > maxUploadBatchBytes {
			flush()
		}
		current = append(current, stamped)
		currentBytes += len(size)
	}
	flush()
	return batches
}

// GetIndexerStatus polls the named indexer's status, truncating execution
// history to the last 5 runs.
func (g *Gateway) GetIndexerStatus(ctx context.Context, name string) (*model.IndexerStatus, error) {
	path := fmt.Sprintf("/indexers('%s')/search.status", url.PathEscape(name))

	var status model.IndexerStatus
	if err := g.doJSON(ctx, http.MethodGet, path, nil, &status, uuid.NewString()); err != nil {
		return nil, err
	}
	if len(status.ExecutionHistory) > 5 {
		status.ExecutionHistory = status.ExecutionHistory[:5]
	}
	return &status, nil
}

// RunIndexer triggers the named indexer. If wait is true, it polls
// GetIndexerStatus every pollInterval until the last result reaches a
// terminal status or timeout elapses, returning {timedOut:true} in the
// latter case.
func (g *Gateway) RunIndexer(ctx context.Context, name string, wait bool, pollInterval, timeout time.Duration) (RunIndexerResult, error) {
	path := fmt.Sprintf("/indexers/%s/run", url.PathEscape(name))
	if err := g.doJSON(ctx, http.MethodPost, path, nil, nil, uuid.NewString()); err != nil {
		return RunIndexerResult{}, err
	}

	if !wait {
		return RunIndexerResult{Started: true}, nil
	}

	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	deadline := time.Now().Add(timeout)
	for {
		status, err := g.GetIndexerStatus(ctx, name)
		if err != nil {
			return RunIndexerResult{}, err
		}
		if isTerminal(status.LastResult.Status) {
			return RunIndexerResult{Completed: true, Status: *status}, nil
		}
		if time.Now().After(deadline) {
			return RunIndexerResult{TimedOut: true, Status: *status}, nil
		}

		select {
		case <-ctx.Done():
			return RunIndexerResult{}, apierrors.NewCancelledError(ctx)
		case <-time.After(pollInterval):
		}
	}
}

func randFraction() float64 {
	return rand.Float64()
}

func isTerminal(status string) bool {
	switch status {
	case "success", "transientFailure", "error":
		return true
	default:
		return false
	}
}

// doJSON performs one logical call with retry and circuit breaking:
// JSON-encode body (if any), send, JSON-decode the response into out (if
// non-nil), and classify non-2xx/transport errors per the gateway's error
// taxonomy. Permanent (4xx other than 429) errors return immediately
// without retry; transient ones retry per g.retryCfg.
func (g *Gateway) doJSON(ctx context.Context, method, path string, body, out any, correlationID string) error {
	if !g.breaker.Allow() {
		return apierrors.Wrap(apierrors.ErrCodeBackendUnavailable, apierrors.ErrCircuitOpen)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return apierrors.New(apierrors.ErrCodeInvalidInput, "failed to encode request body", err)
		}
	}

	start := time.Now()
	delay := g.retryCfg.InitialDelay

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return apierrors.NewCancelledError(ctx)
		default:
		}

		status, respBody, sendErr := g.send(ctx, method, path, payload, correlationID)

		var callErr error
		switch {
		case sendErr != nil:
			callErr = apierrors.NewBackendTransientError(0, "transport error calling search index", sendErr)
		case status >= 200 && status < 300:
			g.logAttempt(method, path, status, attempt, time.Since(start), correlationID, nil)
			if out != nil && len(respBody) > 0 {
				if err := json.Unmarshal(respBody, out); err != nil {
					return apierrors.New(apierrors.ErrCodeInternal, "failed to decode search index response", err)
				}
			}
			g.breaker.RecordSuccess()
			return nil
		case apierrors.RetryableHTTPStatus(status):
			callErr = apierrors.NewBackendTransientError(status, fmt.Sprintf("search index returned status %d", status), nil)
		default:
			callErr = apierrors.NewBackendPermanentError(status, fmt.Sprintf("search index returned status %d", status), nil)
		}

		g.logAttempt(method, path, status, attempt, time.Since(start), correlationID, callErr)

		// Permanent failures surface immediately; never retried.
		if !apierrors.IsRetryable(callErr) {
			g.breaker.RecordFailure()
			return callErr
		}
		if attempt > g.retryCfg.MaxRetries {
			g.breaker.RecordFailure()
			return callErr
		}

		waitDelay := delay
		if g.retryCfg.Jitter {
			waitDelay = time.Duration(float64(delay) * (0.5 + randFraction()*0.5))
		}
		select {
		case <-ctx.Done():
			return apierrors.NewCancelledError(ctx)
		case <-time.After(waitDelay):
		}

		delay = time.Duration(float64(delay) * g.retryCfg.Multiplier)
		if delay > g.retryCfg.MaxDelay {
			delay = g.retryCfg.MaxDelay
		}
	}
}

func (g *Gateway) send(ctx context.Context, method, path string, payload []byte, correlationID string) (int, []byte, error) {
	u := g.endpoint + path
	sep := "?"
	if bytes.ContainsRune([]byte(u), '?') {
		sep = "&"
	}
	u += sep + "api-version=" + APIVersion

	if g.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.attemptTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bytesReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", g.apiKey)
	req.Header.Set("x-correlation-id", correlationID)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

func bytesReader(b []byte) io.Reader {
	if b == nil {
		return nil
	}
	return bytes.NewReader(b)
}

// logAttempt logs one remote-call attempt. It never includes the request
// or response body — only method, path, status, attempt number, elapsed
// time, and correlation id, per the gateway's logging contract.
func (g *Gateway) logAttempt(method, path string, status, attempt int, elapsed time.Duration, correlationID string, err error) {
	attrs := []any{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Int("attempt", attempt),
		slog.String("elapsed", elapsed.String()),
		slog.String("correlation_id", correlationID),
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", apierrors.FormatForLog(err)))
		g.logger.Warn("search index request failed", attrs...)
		return
	}
	g.logger.Debug("search index request", attrs...)
}
