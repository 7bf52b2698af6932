package cli

import (
	"encoding/json"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"
)

var MpoolCmd = &cli.Command{
	Name:  "mpool",
	Usage: "Manage message pool",
	Subcommands: []*cli.Command{
		MpoolPending,
		MpoolPush,
		MpoolNonce,
	},
}

var MpoolPending = &cli.Command{
	Name:  "pending",
	Usage: "Get pending messages",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "from",
			Usage: "return messages from a given address",
		},
		&cli.BoolFlag{
			Name:  "cids",
			Usage: "only print cids of messages in output",
		},
		tipsetFlag,
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 0 {
			return IncorrectNumArgs(cctx)
		}

		var from address.Address
		if cctx.IsSet("from") {
			f, err := address.NewFromString(cctx.String("from"))
			if err != nil {
				return ShowHelp(cctx, xerrors.Errorf("parsing from: %w", err))
			}
			from = f
		}

		gapi, closer, err := GetDaemonGasAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		tsk, err := TipSetKey(cctx)
		if err != nil {
			return err
		}

		msgs, err := gapi.MpoolPending(ctx, tsk)
		if err != nil {
			return err
		}

		afmt := NewAppFmt(cctx.App)
		for _, msg := range msgs {
			if from != address.Undef && msg.Message.From != from {
				continue
			}

			if cctx.Bool("cids") {
				afmt.Println(msg.Cid())
				continue
			}

			out, err := json.MarshalIndent(msg, "", "  ")
			if err != nil {
				return err
			}
			afmt.Println(string(out))
		}

		return nil
	},
}

var MpoolPush = &cli.Command{
	Name:      "push",
	Usage:     "Push a signed message to the message pool",
	ArgsUsage: "<signed-message.json | ->",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return IncorrectNumArgs(cctx)
		}

		smsg, err := readSignedMessage(cctx, cctx.Args().First())
		if err != nil {
			return err
		}

		gapi, closer, err := GetDaemonGasAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		c, err := gapi.MpoolPush(ctx, smsg)
		if err != nil {
			return xerrors.Errorf("mpool push: %w", err)
		}

		afmt := NewAppFmt(cctx.App)
		afmt.Println(c)
		return nil
	},
}

var MpoolNonce = &cli.Command{
	Name:      "nonce",
	Usage:     "Get the next nonce of an address given what is pending",
	ArgsUsage: "<address>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return IncorrectNumArgs(cctx)
		}

		addr, err := address.NewFromString(cctx.Args().First())
		if err != nil {
			return ShowHelp(cctx, xerrors.Errorf("parsing address: %w", err))
		}

		gapi, closer, err := GetDaemonGasAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()

		nonce, err := gapi.MpoolGetNonce(ReqContext(cctx), addr)
		if err != nil {
			return err
		}

		afmt := NewAppFmt(cctx.App)
		afmt.Println(nonce)
		return nil
	},
}
