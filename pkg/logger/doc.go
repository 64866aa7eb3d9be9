// Package logger builds the *slog.Logger used across iapkit and provides
// attribute helpers that keep purchase-flow log keys consistent.
//
// New returns a logger configured by Option values: output format (text or
// json), minimum level, static attributes and context extractors. Extractors
// run on every record through ContextHandler so values such as a purchase
// attempt id stored in a context.Context show up without being passed around.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "iapctl"),
//	    logger.WithContextValue("attempt_id", attemptKey{}),
//	)
//	log.Info("purchase stage",
//	    logger.PackID("coins_100"),
//	    logger.Stage("server_start"),
//	)
//
// Error and Errors return an empty attribute for nil errors, so callers can
// attach them unconditionally.
package logger
