// Package app wires the StickForStats application together: configuration
// loading, logging and observability, the audit store, the Guardian
// checker, the analysis services, the job queue, and the HTTP server.
//
// # Initialization Flow
//
//	1. Load configuration from environment and files
//	2. Initialize logging and OpenTelemetry metrics
//	3. Open the audit store and build the Guardian checker
//	4. Construct services with their dependencies
//	5. Start the websocket hub, job queue workers, and session sweeper
//	6. Assemble the router and HTTP server
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Run blocks until SIGINT or SIGTERM and then shuts components down in
// reverse dependency order. Initialization errors are returned rather
// than exiting, so main controls the exit code.
package app
