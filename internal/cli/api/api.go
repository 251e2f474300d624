// Package api holds the typed endpoint calls of the analysis service. Every
// call goes through the request pipeline, which owns authentication and
// failure handling.
package api

import (
	"context"
	"encoding/json"

	"github.com/argscan/argscan/internal/cli/client"
)

// Caller executes pipeline requests
type Caller interface {
	Execute(ctx context.Context, req client.Request) (json.RawMessage, error)
	Do(ctx context.Context, req client.Request, out any) error
}

// Client groups the endpoint calls
type Client struct {
	caller Caller
}

// New creates an endpoint client on top of a pipeline
func New(caller Caller) *Client {
	return &Client{caller: caller}
}

// Option is a selectable value offered by the service (file types, references)
type Option struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}
