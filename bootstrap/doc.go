// Package bootstrap orchestrates the BotShepherd application lifecycle.
//
// It wires configuration, logging, component registration, and
// startup/shutdown hooks into a single Run loop with graceful shutdown.
//
// # Quick Start
//
//	app, err := bootstrap.NewApp("botshepherd", cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app.RegisterComponent(dbComponent)
//	app.RegisterComponent(serverComponent)
//	if err := app.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Components start in registration order and stop in reverse. After startup a
// summary of infrastructure, routes, and component health is printed.
package bootstrap
