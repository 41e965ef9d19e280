// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"errors"

	"github.com/danielhkuo/messmate/models"
	"github.com/danielhkuo/messmate/voting"
)

// Fanout delivers each notification to every sink, even when one fails.
type Fanout []voting.Notifier

func (f Fanout) Notify(ctx context.Context, n models.Notification) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ voting.Notifier = Fanout(nil)
	_ voting.Notifier = (*Broker)(nil)
)
