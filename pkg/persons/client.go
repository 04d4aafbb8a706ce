package persons

import (
	"context"
	"encoding/json"
	"net/url"

	"slashid/pkg/gateway"
)

// API is the subset of gateway.Client the persons client needs.
type API interface {
	Get(ctx context.Context, path string, query gateway.Query) (json.RawMessage, error)
}

type Client struct {
	api API
}

func NewClient(api API) *Client { return &Client{api: api} }

var defaultFields = []string{"handles", "groups", "attributes"}

// Get fetches one person with handles, groups and attributes. An unknown id
// fails with problems.ErrIDNotFound.
func (c *Client) Get(ctx context.Context, id string) (*Person, error) {
	raw, err := c.api.Get(ctx, "persons/"+url.PathEscape(id), gateway.Query{"fields": defaultFields})
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}
