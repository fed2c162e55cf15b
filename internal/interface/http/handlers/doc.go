// Package handlers contains reusable HTTP building blocks for the REST API.
//
// This package provides:
//   - Health check interfaces and a composite checker
//   - A per-client rate limiter built on golang.org/x/time/rate
//   - Small middleware components (security headers, body limits)
//
// # Health Checks
//
// Named checks run in parallel, each under its own timeout:
//
//	checker := handlers.NewCompositeHealthChecker("0.1.0")
//	checker.AddCheck("store", handlers.NewPingCheck(repo))
//	checker.AddCheck("cache", handlers.NewPingCheck(cache))
//	checker.AddCheck("grade_service", handlers.NewBreakerCheck(client))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Printf("health check failed: %s", status.Message)
//	}
//
// # Rate Limiting
//
// The limiter keeps one token bucket per client key and forgets idle
// clients:
//
//	limiter := handlers.NewRateLimiter(120, time.Minute)
//	defer limiter.Close()
//	if !limiter.Allow(clientIP) {
//	    // 429
//	}
package handlers
