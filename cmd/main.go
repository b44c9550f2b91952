package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"controlling_hottub/internal/app"
	"controlling_hottub/internal/service"

	"github.com/urfave/cli"
)

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "hottubctl:", err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	a := cli.NewApp()
	a.Name = "hottubctl"
	a.HelpName = "hottubctl"
	a.Usage = "schedule and control the hot tub heater"
	a.UsageText = "hottubctl [--config FILE] <command> [arguments...]"
	a.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "config file (default configs/config.yml)",
			EnvVar: "HOTTUB_CONFIG",
		},
	}
	a.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "run the HTTP API",
			Action: withApp(serve),
		},
		{
			Name:      "fire",
			Usage:     "run a scheduled job (invoked by crontab)",
			ArgsUsage: "<job-id>",
			Action:    withApp(fire),
		},
		{
			Name:   "check",
			Usage:  "run one heat-to-target control cycle",
			Action: withApp(check),
		},
		{
			Name:   "stop",
			Usage:  "stop heat-to-target and remove pending checks",
			Action: withApp(stop),
		},
		{
			Name:   "characteristics",
			Usage:  "regenerate heating characteristics from history",
			Action: withApp(characteristics),
		},
		{
			Name:  "cleanup",
			Usage: "remove old job records that have no crontab entry",
			Flags: []cli.Flag{
				cli.DurationFlag{
					Name:  "min-age",
					Usage: "only reap records older than this (default cron.orphan_min_age)",
				},
			},
			Action: withApp(cleanup),
		},
		{
			Name:   "ensure-cron",
			Usage:  "install the daily characteristics entry if missing",
			Action: withApp(ensureCron),
		},
	}
	return a
}

// withApp wires the application for one command and releases it afterwards.
// SIGINT and SIGTERM cancel the command's context.
func withApp(run func(ctx context.Context, c *cli.Context, a *app.App) error) func(*cli.Context) error {
	return func(c *cli.Context) (err error) {
		a, err := app.New(c.GlobalString("config"))
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return run(ctx, c, a)
	}
}

func serve(ctx context.Context, _ *cli.Context, a *app.App) error {
	return a.Serve(ctx)
}

func fire(ctx context.Context, c *cli.Context, a *app.App) error {
	id := c.Args().First()
	if id == "" {
		return cli.NewExitError("fire: job id required", 2)
	}
	res, err := a.Services.Fire(ctx, id)
	if err != nil {
		a.Log.Errorw("job fire failed", "job_id", id, "err", err)
	}
	printJSON(res)
	return err
}

func check(ctx context.Context, _ *cli.Context, a *app.App) error {
	res, err := a.Services.CheckAndAdjust(ctx)
	printJSON(res)
	return err
}

func stop(ctx context.Context, _ *cli.Context, a *app.App) error {
	if err := a.Services.TargetTemperature.Stop(ctx); err != nil {
		return err
	}
	printJSON(map[string]string{"status": "stopped"})
	return nil
}

func characteristics(ctx context.Context, _ *cli.Context, a *app.App) error {
	chars, err := a.Services.GenerateCharacteristics(ctx, service.GenerateParams{})
	if err != nil {
		return err
	}
	printJSON(chars)
	return nil
}

func cleanup(ctx context.Context, c *cli.Context, a *app.App) error {
	minAge := a.Config.Cron.OrphanMinAge
	if c.IsSet("min-age") {
		minAge = c.Duration("min-age")
	}
	reaped, err := a.Services.CleanupOrphans(ctx, minAge)
	if err != nil {
		return err
	}
	printJSON(map[string]any{"reaped": reaped, "count": len(reaped)})
	return nil
}

func ensureCron(ctx context.Context, _ *cli.Context, a *app.App) error {
	installed, err := a.Services.EnsureRegenerationCron(ctx)
	if err != nil {
		return err
	}
	printJSON(map[string]bool{"installed": installed})
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
