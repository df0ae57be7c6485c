// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

/*
Package supervisor runs the gateway's long-lived services under a suture v4
tree with restart, backoff and graceful shutdown.

Supervisor events are logged through sutureslog into the zerolog-backed
slog handler from package logging:

	logger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 15*time.Second))
	tree.AddMaintenanceService(services.NewDenylistCleanupService(denylist, 5*time.Minute))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)

Service implementations live in the services subpackage.
*/
package supervisor
