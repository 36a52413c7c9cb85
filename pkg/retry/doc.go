// Package retry repeats operations that fail for transient reasons, such as
// connecting to the tilde server over a flaky network.
//
//	err := retry.Do(ctx, retry.DefaultPolicy(), log, func(ctx context.Context) error {
//		return connect(ctx)
//	})
//
// An operation returns retry.Permanent(err) for failures that another attempt
// cannot fix, such as a rejected key. Cancellation of ctx stops the loop.
package retry
