// Package health serves the liveness and readiness probes of the catalog
// service.
//
// Liveness (/healthz, /livez) only reports that the process answers.
// Readiness (/readyz) runs the registered dependency checks, the catalog
// database and the response cache, in parallel and answers 503 when a
// critical check fails or the server is draining:
//
//	h := health.NewHandler(logger)
//	h.AddCheck(health.DatabaseCheck("database", store))
//	h.AddCheck(health.CacheCheck("cache", responseCache, health.WithCritical(false)))
//	h.RegisterRoutes(engine)
package health
