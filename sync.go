package openmail

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// Sync refreshes the address book and notifications, then fetches the
// broadcasts, inbox, outbox and sent collections concurrently. Every step
// runs even when an earlier one fails; the failures are joined.
func (c *Client) Sync(ctx context.Context) error {
	c.syncing.Add(1)
	defer c.syncing.Add(-1)

	var errs []error
	if _, err := c.FetchContacts(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.FetchNotifications(ctx); err != nil {
		errs = append(errs, err)
	}

	steps := []func(context.Context) error{
		func(ctx context.Context) error { _, err := c.FetchBroadcasts(ctx); return err },
		func(ctx context.Context) error { _, err := c.FetchInbox(ctx); return err },
		func(ctx context.Context) error { _, err := c.FetchOutbox(ctx); return err },
		func(ctx context.Context) error { _, err := c.FetchSent(ctx); return err },
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, step := range steps {
		wg.Add(1)
		go func(step func(context.Context) error) {
			defer wg.Done()
			if err := step(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(step)
	}
	wg.Wait()

	err := errors.Join(errs...)
	entry := logrus.WithFields(logrus.Fields{
		"function": "Sync",
		"address":  c.user.Address.String(),
	})
	if err != nil {
		entry.WithField("error", err.Error()).Warn("Sync completed with errors")
	} else {
		entry.Debug("Sync completed")
	}
	return err
}
