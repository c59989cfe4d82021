// Package retry retries calls to the catalog database and the redis
// response cache with exponential backoff and jitter.
//
//	err := retry.Do(ctx, "database.connect", retry.DatabaseConnect,
//	    func(ctx context.Context) error { return db.PingContext(ctx) },
//	    retry.WithOnRetry(logAttempt))
//
// Errors wrapped with Permanent stop the loop at once. Retries, backoff
// waits and final outcomes are exported under the ordcatalog_retry
// subsystem.
package retry
