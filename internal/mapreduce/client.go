package mapreduce

import (
	"context"

	"github.com/danmuck/riakmr/internal/transport"
	"github.com/rs/zerolog/log"
)

// Client dials a fresh connection per job. There is no pooling and no retry.
type Client struct {
	Addr      string
	Transport transport.Config
	Request   Config
}

func NewClient(addr string, tcfg transport.Config, rcfg Config) *Client {
	return &Client{Addr: addr, Transport: tcfg, Request: rcfg}
}

// Do runs q against the remote and closes the connection afterwards.
func (c *Client) Do(ctx context.Context, q Query, dest Destination) (Result, error) {
	conn, err := transport.Dial(ctx, c.Addr, c.Transport)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Str("addr", c.Addr).Msg("mapreduce.Client close")
		}
	}()
	return New(q, dest, c.Request).Execute(ctx, conn)
}
