// Package handlers contains reusable HTTP building blocks for the ranking API:
// composite health checks and admin authentication.
//
// # Health Checks
//
// Named checks run in parallel, each under its own timeout:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("store", handlers.NewPingCheck(store))
//	checker.AddSoftCheck("albion_api", handlers.NewBreakerCheck(func() string {
//		return albionClient.Status().CircuitBreaker
//	}))
//
// A check may be marked non-critical with AddSoftCheck: its failure is
// reported but the service stays ready. The Albion breaker is soft, the
// bot keeps answering with "API unavailable" boards while it is open.
//
// # Admin Authentication
//
// Admin endpoints compare the X-Admin-Token header against a bcrypt hash:
//
//	auth := handlers.NewAdminTokenAuth(cfg.HTTP.AdminTokenHash)
//	mux.Handle("POST /api/v1/admin/daily-cycle", auth.Middleware(h))
//
// Without a configured hash the admin endpoints answer 404.
package handlers
