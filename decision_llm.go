/*
File: decision_llm.go
Version: 1.1.0
Description: Optional LLM decision boundary for region-dense screens.
             Bounded timeout with a mandatory rule-based fallback; the caller
             can never block indefinitely on the external service.
*/

package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quic-go/quic-go/http3"
)

// AdvisorRequest describes one dense-screen situation.
type AdvisorRequest struct {
	RegionCount   int     `json:"region_count"`
	MaxConfidence float64 `json:"max_confidence"`
	CurrentApp    string  `json:"current_app,omitempty"`
}

// AdvisorResponse is what the external decision service returns.
type AdvisorResponse struct {
	Action         string  `json:"action"`
	Reasoning      string  `json:"reasoning"`
	Confidence     float64 `json:"confidence"`
	ResponseTimeMs int64   `json:"response_time_ms"`
}

// AdvisorCaller abstracts the wire call so tests can stub it out.
type AdvisorCaller interface {
	Call(ctx context.Context, req AdvisorRequest) (AdvisorResponse, error)
}

// LLMAdvisor wraps a caller with the timeout and fallback policy.
type LLMAdvisor struct {
	caller  AdvisorCaller
	timeout time.Duration

	calls     uint64
	fallbacks uint64
}

func NewLLMAdvisor(caller AdvisorCaller, timeout time.Duration) *LLMAdvisor {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &LLMAdvisor{caller: caller, timeout: timeout}
}

// Recommend asks the external service for an action. On timeout, transport
// failure, or an unparseable answer it returns the rule-based fallback. The
// call is dispatched on its own goroutine; an advisor that never resolves
// just leaks one blocked goroutine until its context fires, and the decision
// proceeds with the fallback.
func (a *LLMAdvisor) Recommend(parent context.Context, req AdvisorRequest, fallback RecommendedAction) RecommendedAction {
	a.calls++

	ctx, cancel := context.WithTimeout(parent, a.timeout)
	defer cancel()

	type outcome struct {
		resp AdvisorResponse
		err  error
	}
	ch := make(chan outcome, 1)

	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("advisor panic: %v", r)}
			}
		}()
		resp, err := a.caller.Call(ctx, req)
		ch <- outcome{resp: resp, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			a.fallbacks++
			LogWarn("[ADVISOR] Call failed (%v), using rule fallback %s", out.err, fallback)
			return fallback
		}
		action, ok := parseRecommendedAction(out.resp.Action)
		if !ok {
			a.fallbacks++
			LogWarn("[ADVISOR] Unknown action '%s', using rule fallback %s", out.resp.Action, fallback)
			return fallback
		}
		if IsDebugEnabled() {
			LogDebug("[ADVISOR] %s (conf=%.2f, rtt=%v): %s", action, out.resp.Confidence, time.Since(start), out.resp.Reasoning)
		}
		return action
	case <-ctx.Done():
		a.fallbacks++
		LogWarn("[ADVISOR] Timed out after %v, using rule fallback %s", a.timeout, fallback)
		return fallback
	}
}

// Stats returns cumulative advisor counters.
func (a *LLMAdvisor) Stats() (calls, fallbacks uint64) {
	return a.calls, a.fallbacks
}

// --- HTTP caller ---

// HTTPAdvisorCaller speaks a chat-completion style JSON endpoint over
// HTTP/1.1+2 or, when configured, HTTP/3.
type HTTPAdvisorCaller struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

func NewHTTPAdvisorCaller(cfg LLMConfig) *HTTPAdvisorCaller {
	client := &http.Client{}
	if cfg.Transport == "h3" {
		client.Transport = &http3.RoundTripper{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS13},
		}
	}
	return &HTTPAdvisorCaller{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   client,
	}
}

type advisorWireRequest struct {
	Model   string         `json:"model,omitempty"`
	Context AdvisorRequest `json:"context"`
}

func (c *HTTPAdvisorCaller) Call(ctx context.Context, req AdvisorRequest) (AdvisorResponse, error) {
	body, err := json.Marshal(advisorWireRequest{Model: c.model, Context: req})
	if err != nil {
		return AdvisorResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return AdvisorResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return AdvisorResponse{}, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return AdvisorResponse{}, fmt.Errorf("advisor status %d", httpResp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<16))
	if err != nil {
		return AdvisorResponse{}, err
	}

	var resp AdvisorResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return AdvisorResponse{}, fmt.Errorf("advisor decode: %w", err)
	}
	resp.ResponseTimeMs = time.Since(start).Milliseconds()
	return resp, nil
}
