package main

import (
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"

	"github.com/filecoin-project/lotus-gasest/build"
	lcli "github.com/filecoin-project/lotus-gasest/cli"
)

var log = logging.Logger("main")

func main() {
	local := []*cli.Command{
		daemonCmd,
	}

	app := &cli.App{
		Name:                 "lotus-gasest",
		Usage:                "Filecoin message gas estimator",
		Version:              build.UserVersion(),
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "repo",
				EnvVars: []string{"LOTUS_GASEST_PATH"},
				Value:   "~/.lotus-gasest",
			},
			&cli.StringFlag{
				Name:    "api",
				EnvVars: []string{"LOTUS_GASEST_API"},
				Usage:   "host:port of a running estimator (default: the daemon recorded in the repo)",
			},
			&cli.StringFlag{
				Name:    "api-token",
				EnvVars: []string{"LOTUS_GASEST_API_TOKEN"},
				Usage:   "token granting write access to the API (default: the token stored in the repo)",
			},
			&cli.StringFlag{
				Name:  "network",
				Usage: "override the network configured in the repo",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
			},
		},
		Before: func(cctx *cli.Context) error {
			return logging.SetLogLevel("*", cctx.String("log-level"))
		},

		Commands: append(local, lcli.Commands...),
	}
	app.Setup()

	lcli.RunApp(app)
}
