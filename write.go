package openmail

import (
	"context"
	"errors"
	"fmt"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/agent"
	"github.com/opd-ai/openmail/interfaces"
	"github.com/sirupsen/logrus"
)

// ErrWrite indicates that every known agent rejected a mutating request.
// Callers roll back any optimistic local state.
var ErrWrite = errors.New("write failed")

// write commits the request built by build against the first of addr's
// agents that accepts it.
func (c *Client) write(ctx context.Context, op string, addr address.Address, build func(agent string) *interfaces.Request) (*interfaces.Response, error) {
	c.writes.Add(1)
	c.writing.Add(1)
	defer c.writing.Add(-1)

	agents := c.resolver.AgentsFor(ctx, addr)
	resp, used, err := agent.Try(ctx, c.requester, agents, build)
	if err != nil {
		c.writeFailures.Add(1)
		logrus.WithFields(logrus.Fields{
			"function": op,
			"address":  addr.String(),
			"agents":   len(agents),
			"error":    err.Error(),
		}).Error("Write failed on every agent")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrWrite, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": op,
		"address":  addr.String(),
		"agent":    used,
	}).Info("Write committed")
	return resp, nil
}

// read returns the first successful response for a request to addr's agents.
func (c *Client) read(ctx context.Context, addr address.Address, build func(agent string) *interfaces.Request) (*interfaces.Response, error) {
	resp, _, err := agent.Try(ctx, c.requester, c.resolver.AgentsFor(ctx, addr), build)
	return resp, err
}
