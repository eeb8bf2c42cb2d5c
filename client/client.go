// Package client talks to a running datacube daemon.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/0xADE/datacube/proto"
)

// ErrUnexpectedResponse means the daemon answered with the wrong message
// type.
var ErrUnexpectedResponse = errors.New("unexpected response type")

// Client handles one connection to the daemon. Requests on a Client are
// serialized; open several clients for parallel queries.
type Client struct {
	conn   net.Conn
	mu     sync.Mutex
	socket string
	dec    *proto.Decoder
}

// NewClient connects to the socket named by the configuration at
// configPath.
func NewClient(ctx context.Context, configPath string) (*Client, error) {
	socketPath, err := SocketPath(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get socket path: %w", err)
	}
	return Dial(ctx, socketPath)
}

// Dial connects to the daemon listening on socketPath.
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket %s: %w", socketPath, err)
	}
	return &Client{
		conn:   conn,
		socket: socketPath,
		dec:    proto.NewDecoder(conn, 0),
	}, nil
}

// Socket returns the path the client is connected to.
func (c *Client) Socket() string {
	return c.socket
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Query sends a query and waits for its response.
func (c *Client) Query(ctx context.Context, req proto.QueryRequest) (proto.QueryResponse, error) {
	var resp proto.QueryResponse
	err := c.roundTrip(ctx, proto.TypeQueryRequest, req, proto.TypeQueryResponse, &resp)
	return resp, err
}

// ListProviders asks the daemon which providers it has.
func (c *Client) ListProviders(ctx context.Context) ([]proto.ProviderInfo, error) {
	var resp proto.ListProvidersResponse
	if err := c.roundTrip(ctx, proto.TypeListProvidersRequest, proto.ListProvidersRequest{}, proto.TypeListProvidersResponse, &resp); err != nil {
		return nil, err
	}
	return resp.Providers, nil
}

func (c *Client) roundTrip(ctx context.Context, t proto.MessageType, req any, want proto.MessageType, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}
	// Unblock pending I/O when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := proto.WriteMessage(c.conn, t, req); err != nil {
		return c.ctxErr(ctx, fmt.Errorf("failed to send %s: %w", t, err))
	}
	frame, err := c.dec.Decode()
	if err != nil {
		return c.ctxErr(ctx, fmt.Errorf("failed to read response: %w", err))
	}
	if frame.Type != want {
		return fmt.Errorf("%w: got %s, want %s", ErrUnexpectedResponse, frame.Type, want)
	}
	return proto.Unmarshal(frame.Body, out)
}

func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	// The connection deadline can fire just before the context notices.
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}
