// Copyright 2025 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package iss

import (
	"context"
	"time"

	"github.com/stockparfait/logging"
)

// withRetry runs fn up to MaxRetries times with exponentially increasing
// backoff between attempts. Only transient (KindNetwork) failures are
// retried; any other failure is returned immediately. When the budget is
// spent, the last transient error is wrapped as KindExhausted. Backoff
// sleeps respect ctx cancellation.
func (c *Client) withRetry(ctx context.Context, offset int, fn func() error) error {
	var lastErr error
	delay := c.config.RetryDelay
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logging.Debugf(ctx, "MOEX ISS: offset %d succeeded on attempt %d",
					offset, attempt)
			}
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
		if attempt >= c.config.MaxRetries {
			break
		}
		logging.Debugf(ctx,
			"MOEX ISS: transient failure at offset %d (attempt %d), retrying in %s: %s",
			offset, attempt, delay, err.Error())
		select {
		case <-ctx.Done():
			return pageError(KindNetwork, offset, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return pageError(KindExhausted, offset, lastErr)
}
