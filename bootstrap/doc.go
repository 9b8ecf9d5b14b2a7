// Package bootstrap runs a chatstream binary through a fixed lifecycle:
// typed config with defaults and validation, a logger built from it,
// start and stop hooks, and a task whose context is cancelled on
// SIGINT or SIGTERM.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.OnStart(setupTelemetry)
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//	    return streamPrompt(ctx, app.Cfg)
//	})
package bootstrap
