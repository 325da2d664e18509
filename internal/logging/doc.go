// Package logging holds the slog conventions of calview: the process logger
// built from --log-format and --debug, the attribute helpers every package
// logs with, and an adapter for components that take a smaller interface.
//
// Log lines about a user never carry the e-mail address itself:
//
//	logger.Info("signed in", logging.UserHash(account.Email))
//
// Calendar operations are tagged with the backend, the page kind and the
// queried window:
//
//	logger := logging.WithBackend(slog.Default(), "google")
//	logger.Debug("listed events", logging.Range(r), logging.Count(len(events)))
package logging
