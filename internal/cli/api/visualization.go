package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/argscan/argscan/internal/cli/client"
)

// Chart payloads vary by analysis type and are returned undecoded.

// Genome returns the genome overview of a task
func (c *Client) Genome(ctx context.Context, taskID int64) (json.RawMessage, error) {
	return c.caller.Execute(ctx, client.Request{Path: fmt.Sprintf("/visualization/genome/%d", taskID)})
}

// Prophage returns one detected region with its genes
func (c *Client) Prophage(ctx context.Context, taskID, regionID int64) (json.RawMessage, error) {
	return c.caller.Execute(ctx, client.Request{Path: fmt.Sprintf("/visualization/prophage/%d/%d", taskID, regionID)})
}

// Statistics returns chart statistics of a task
func (c *Client) Statistics(ctx context.Context, taskID int64) (json.RawMessage, error) {
	return c.caller.Execute(ctx, client.Request{Path: fmt.Sprintf("/visualization/statistics/%d", taskID)})
}

// Export downloads the full visualization data of a task
func (c *Client) Export(ctx context.Context, taskID int64) ([]byte, error) {
	return c.caller.Execute(ctx, client.Request{
		Path:     fmt.Sprintf("/visualization/export/%d", taskID),
		Response: client.ResponseBlob,
	})
}
