package clients

import "context"

// Repo stores registered clients. Lookups return (nil, nil) when no client matches.
type Repo interface {
	Upsert(ctx context.Context, client *Client) error
	GetByID(ctx context.Context, id string) (*Client, error)
	GetByClientID(ctx context.Context, clientID string) (*Client, error)
	List(ctx context.Context, offset, limit int) ([]*Client, error)
}
