// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

/*
Package botfilter rejects scanner and probe traffic before it reaches routing
or the request logger.

Requests are classified in two tiers:

  - Fast block: well-known probe prefixes (WordPress, phpMyAdmin, dotfiles,
    CGI) answer 410 Gone with minimal logging.
  - Slow block: broader path patterns, scanner user agents and injection
    attempts in the query string answer 404 Not Found so the probe learns
    nothing about the application.

The /.well-known/ prefix is exempt from slow-tier path and user agent checks,
and browser or link-preview user agents are never blocked by signature.

Clients are identified by a salted fingerprint of their IP address, so raw
addresses never reach the logs:

	fp := botfilter.NewFingerprinter(cfg.BotFilter.Secret)
	filter := botfilter.New(botfilter.Config{Enabled: true}, fp, logging.WithComponent("botfilter"))
	router.Use(filter.Handler)

The filter is stateless and safe for concurrent use.
*/
package botfilter
