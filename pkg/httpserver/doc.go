// Package httpserver runs the HTTP surfaces of iapkit binaries (the control
// API of iapctl and the development grant server) with graceful shutdown and
// dependency health checks.
//
//	srv := httpserver.New(cfg, httpserver.WithLogger(log))
//	r := chi.NewRouter()
//	r.Get("/healthz", httpserver.HealthHandler(log, httpserver.Check{Name: "redis", Func: redis.Healthcheck(client)}))
//	if err := srv.Run(ctx, r); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// Run blocks until ctx is cancelled or the process receives SIGINT/SIGTERM.
package httpserver
