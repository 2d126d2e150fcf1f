package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hassan-khan-web/ScholarForge/model"
)

// failurePrefix opens every failure sentinel string.
const failurePrefix = "[Agent Failure:"

// Call is a single prompt sent through the gateway.
type Call struct {
	Role        model.Role
	Model       string // optional: pin to one endpoint
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	JSON        bool
}

// Result is the outcome of Invoke. Err is set when the chain was exhausted
// or the call stopped on a fatal error; Content is empty in that case.
type Result struct {
	Content  string
	Model    string
	Role     model.Role
	Attempts int
	Err      error
}

// Failed reports whether the call produced no content.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Text returns the content, or the failure sentinel when the call failed.
func (r Result) Text() string {
	if r.Failed() {
		label := r.Model
		if label == "" {
			label = string(r.Role)
		}
		return FailureText(label)
	}
	return r.Content
}

// FailureText builds the sentinel placed in the content stream when a model
// call could not be completed.
func FailureText(label string) string {
	return failurePrefix + " " + label + "]"
}

// IsFailureText reports whether text is, or contains, a failure sentinel.
func IsFailureText(text string) bool {
	return strings.Contains(text, failurePrefix)
}

// Invoke runs a call and folds the outcome into a Result instead of an error.
func (c *Client) Invoke(ctx context.Context, call Call) Result {
	temp := call.Temperature
	resp, err := c.Complete(ctx, Request{
		Role:  call.Role,
		Model: call.Model,
		Messages: []Message{
			{Role: "system", Content: call.System},
			{Role: "user", Content: call.User},
		},
		Temperature: &temp,
		MaxTokens:   call.MaxTokens,
		JSON:        call.JSON,
	})
	if err != nil {
		attempts := 0
		var ee *ExhaustedError
		if errors.As(err, &ee) {
			attempts = ee.Attempts
		}
		return Result{Role: call.Role, Model: call.Model, Attempts: attempts, Err: err}
	}
	return Result{
		Content:  resp.Content,
		Model:    resp.Endpoint,
		Role:     call.Role,
		Attempts: resp.Attempts,
	}
}

// Invoker is the gateway surface the pipeline stages depend on.
type Invoker interface {
	Invoke(ctx context.Context, call Call) Result
}

// CallEvent describes one provider attempt.
type CallEvent struct {
	RequestID string
	Role      model.Role
	Endpoint  string
	Provider  string
	Attempt   int
	Class     FailureClass
	Duration  time.Duration
	Err       error
}

// Observer receives an event for every provider attempt.
type Observer interface {
	ObserveCall(CallEvent)
}

type nopObserver struct{}

func (nopObserver) ObserveCall(CallEvent) {}
