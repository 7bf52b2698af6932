package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/filecoin-project/lotus-gasest/node/config"
)

var ConfigCmd = &cli.Command{
	Name:  "config",
	Usage: "Manage node config",
	Subcommands: []*cli.Command{
		configDefaultCmd,
	},
}

var configDefaultCmd = &cli.Command{
	Name:  "default",
	Usage: "Print default node config",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-comment",
			Usage: "don't comment default values",
		},
	},
	Action: func(cctx *cli.Context) error {
		c := config.DefaultFullNode()

		var (
			cb  []byte
			err error
		)
		if cctx.Bool("no-comment") {
			cb, err = config.ConfigUpdate(c)
		} else {
			cb, err = config.ConfigComment(c)
		}
		if err != nil {
			return err
		}

		_, err = cctx.App.Writer.Write(cb)
		return err
	},
}
