// Package executor implements the Retry Executor (C6, §4.6): builds and
// sends the HTTP request for a Function Record, classifying the outcome and
// retrying retryable failures with exponential backoff. The short-TTL
// memoization cache is grounded on the teacher's recentResults map
// (internal/tool/registry/registry.go).
package executor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/reactquery/agent/internal/registry"
)

// Outcome is the terminal state of an ExecutionRecord.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ExecutionRecord is the §3 entity produced by Execute.
type ExecutionRecord struct {
	FunctionID string
	Parameters map[string]interface{}
	Outcome    Outcome
	ErrorKind  ErrorKind
	Response   interface{} // parsed JSON body, or raw text if not JSON
	Attempts   int
	Duration   time.Duration
	Err        error
}

// Config carries the tunables named in §4.6.
type Config struct {
	MaxRetries     int           // default 2
	PerCallTimeout time.Duration // default 10s
	RecentTTL      time.Duration // default 5s, 0 disables memoization
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{MaxRetries: 2, PerCallTimeout: 10 * time.Second, RecentTTL: 5 * time.Second}
}

type recentItem struct {
	when   time.Time
	record ExecutionRecord
}

// Executor is the Retry Executor (C6).
type Executor struct {
	Store  *registry.Store
	Client *http.Client
	Config Config

	mu      sync.Mutex
	recent  map[string]map[string]recentItem // conversationID -> key -> item
}

// New builds an Executor with the given store and config. The default HTTP
// client has no timeout of its own; each attempt is bounded by
// cfg.PerCallTimeout through its request context (see doRequest).
func New(store *registry.Store, cfg Config) *Executor {
	return &Executor{
		Store:  store,
		Client: &http.Client{},
		Config: cfg,
		recent: map[string]map[string]recentItem{},
	}
}

// Execute runs the Retry Executor contract (§4.6). conversationID scopes the
// memoization cache; pass "" when there is none.
func (e *Executor) Execute(ctx context.Context, conversationID, functionID string, parameters map[string]interface{}) ExecutionRecord {
	start := time.Now()

	rec, ok := e.Store.GetByID(ctx, functionID)
	if !ok || rec.Deprecated {
		return ExecutionRecord{
			FunctionID: functionID,
			Parameters: parameters,
			Outcome:    OutcomeFailure,
			ErrorKind:  ErrorKindNotFound,
			Err:        fmt.Errorf("executor: function %q not found or deprecated", functionID),
			Duration:   time.Since(start),
		}
	}

	key := memoKey(functionID, parameters)
	if e.Config.RecentTTL > 0 {
		if cached, ok := e.lookupRecent(conversationID, key); ok {
			return cached
		}
	}

	result := e.executeWithRetry(ctx, rec, parameters, start)

	if e.Config.RecentTTL > 0 && result.Outcome == OutcomeSuccess {
		e.storeRecent(conversationID, key, result)
	}
	return result
}

func (e *Executor) executeWithRetry(ctx context.Context, rec *registry.Record, parameters map[string]interface{}, start time.Time) ExecutionRecord {
	maxAttempts := e.Config.MaxRetries + 1
	backoffs := []time.Duration{time.Second, 3 * time.Second}

	var lastErr error
	var lastKind ErrorKind
	attempts := 0

	for attempts < maxAttempts {
		attempts++
		status, body, err := e.doRequest(ctx, rec, parameters)
		if err != nil {
			lastErr = err
			lastKind = ErrorKindRetryable
			if !isTransientNetworkError(err) || attempts >= maxAttempts {
				break
			}
			if !sleepBackoff(ctx, backoffs, attempts-1) {
				break
			}
			continue
		}

		retryable, kind := classifyStatus(status)
		if kind == ErrorKindNone {
			return ExecutionRecord{
				FunctionID: rec.FunctionID,
				Parameters: parameters,
				Outcome:    OutcomeSuccess,
				Response:   parseBody(body),
				Attempts:   attempts,
				Duration:   time.Since(start),
			}
		}
		lastErr = fmt.Errorf("executor: %s returned HTTP %d", rec.FunctionID, status)
		lastKind = kind
		if !retryable || attempts >= maxAttempts {
			break
		}
		if !sleepBackoff(ctx, backoffs, attempts-1) {
			break
		}
	}

	return ExecutionRecord{
		FunctionID: rec.FunctionID,
		Parameters: parameters,
		Outcome:    OutcomeFailure,
		ErrorKind:  lastKind,
		Err:        lastErr,
		Attempts:   attempts,
		Duration:   time.Since(start),
	}
}

func sleepBackoff(ctx context.Context, backoffs []time.Duration, idx int) bool {
	if idx < 0 || idx >= len(backoffs) {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(backoffs[idx]):
		return true
	}
}

func (e *Executor) doRequest(ctx context.Context, rec *registry.Record, parameters map[string]interface{}) (int, []byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.Config.PerCallTimeout)
	defer cancel()

	var req *http.Request
	var err error
	if rec.Method == registry.MethodGET {
		req, err = http.NewRequestWithContext(callCtx, string(rec.Method), rec.Endpoint+"?"+encodeQuery(parameters), nil)
	} else {
		var buf bytes.Buffer
		if encErr := json.NewEncoder(&buf).Encode(parameters); encErr != nil {
			return 0, nil, encErr
		}
		req, err = http.NewRequestWithContext(callCtx, string(rec.Method), rec.Endpoint, &buf)
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return 0, nil, err
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func encodeQuery(parameters map[string]interface{}) string {
	values := url.Values{}
	for k, v := range parameters {
		values.Set(k, fmt.Sprintf("%v", v))
	}
	return values.Encode()
}

func parseBody(body []byte) interface{} {
	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err == nil {
		return parsed
	}
	return string(body)
}

func memoKey(functionID string, parameters map[string]interface{}) string {
	keys := make([]string, 0, len(parameters))
	for k := range parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.New()
	fmt.Fprintf(h, "%s", functionID)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%v", k, parameters[k])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (e *Executor) lookupRecent(conversationID, key string) (ExecutionRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.recent[conversationID]
	if m == nil {
		return ExecutionRecord{}, false
	}
	item, ok := m[key]
	if !ok || time.Since(item.when) > e.Config.RecentTTL {
		return ExecutionRecord{}, false
	}
	return item.record, true
}

func (e *Executor) storeRecent(conversationID, key string, record ExecutionRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recent[conversationID] == nil {
		e.recent[conversationID] = map[string]recentItem{}
	}
	e.recent[conversationID][key] = recentItem{when: time.Now(), record: record}
}
