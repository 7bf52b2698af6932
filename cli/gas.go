package cli

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"

	"github.com/filecoin-project/lotus-gasest/api"
	"github.com/filecoin-project/lotus-gasest/chain/types"
	"github.com/filecoin-project/lotus-gasest/node/config"
)

var GasCmd = &cli.Command{
	Name:  "gas",
	Usage: "Estimate message gas fields",
	Subcommands: []*cli.Command{
		GasPremiumCmd,
		GasFeeCapCmd,
		GasLimitCmd,
		GasEstimateCmd,
	},
}

var GasPremiumCmd = &cli.Command{
	Name:  "premium",
	Usage: "Estimate the gas premium for inclusion within a number of epochs",
	Flags: []cli.Flag{
		&cli.Uint64Flag{
			Name:  "nblocks",
			Usage: "number of epochs for inclusion",
			Value: config.DefaultPremiumInclusionBlocks,
		},
		tipsetFlag,
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 0 {
			return IncorrectNumArgs(cctx)
		}

		gapi, closer, err := GetGasAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		tsk, err := TipSetKey(cctx)
		if err != nil {
			return err
		}

		p, err := gapi.GasEstimateGasPremium(ctx, cctx.Uint64("nblocks"), address.Undef, 0, tsk)
		if err != nil {
			return err
		}

		afmt := NewAppFmt(cctx.App)
		afmt.Printf("%s (%s)\n", p, types.FIL(p))
		return nil
	},
}

var GasFeeCapCmd = &cli.Command{
	Name:  "feecap",
	Usage: "Estimate the fee cap covering the base fee after a number of full blocks",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "premium",
			Usage: "gas premium to add on top of the base fee, in FIL (or attoFIL with the attofil suffix)",
			Value: "0",
		},
		&cli.Int64Flag{
			Name:  "max-queue-blocks",
			Usage: "number of consecutive full blocks the fee cap has to survive",
			Value: config.DefaultFeeCapQueueBlocks,
		},
		tipsetFlag,
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 0 {
			return IncorrectNumArgs(cctx)
		}

		premium, err := types.ParseFIL(cctx.String("premium"))
		if err != nil {
			return ShowHelp(cctx, xerrors.Errorf("parsing premium: %w", err))
		}

		gapi, closer, err := GetGasAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		tsk, err := TipSetKey(cctx)
		if err != nil {
			return err
		}

		msg := &types.Message{GasPremium: abi.TokenAmount(premium)}
		fc, err := gapi.GasEstimateFeeCap(ctx, msg, cctx.Int64("max-queue-blocks"), tsk)
		if err != nil {
			return err
		}

		afmt := NewAppFmt(cctx.App)
		afmt.Printf("%s (%s)\n", fc, types.FIL(fc))
		return nil
	},
}

var GasLimitCmd = &cli.Command{
	Name:      "limit",
	Usage:     "Estimate the gas limit of a message by simulating it",
	ArgsUsage: "<message.json | ->",
	Flags: []cli.Flag{
		tipsetFlag,
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return IncorrectNumArgs(cctx)
		}

		msg, err := readMessage(cctx, cctx.Args().First())
		if err != nil {
			return err
		}

		gapi, closer, err := GetGasAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		tsk, err := TipSetKey(cctx)
		if err != nil {
			return err
		}

		limit, err := gapi.GasEstimateGasLimit(ctx, msg, tsk)
		if err != nil {
			return err
		}
		if limit < 0 {
			return xerrors.Errorf("message would fail to execute")
		}

		afmt := NewAppFmt(cctx.App)
		afmt.Println(limit)
		return nil
	},
}

var GasEstimateCmd = &cli.Command{
	Name:      "estimate",
	Usage:     "Fill in the unset gas fields of a message",
	ArgsUsage: "<message.json | ->",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "max-fee",
			Usage: "maximum total fee for the message, in FIL",
		},
		tipsetFlag,
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return IncorrectNumArgs(cctx)
		}

		msg, err := readMessage(cctx, cctx.Args().First())
		if err != nil {
			return err
		}

		var spec *api.MessageSendSpec
		if cctx.IsSet("max-fee") {
			maxFee, err := types.ParseFIL(cctx.String("max-fee"))
			if err != nil {
				return ShowHelp(cctx, xerrors.Errorf("parsing max-fee: %w", err))
			}
			spec = &api.MessageSendSpec{MaxFee: big.Int(maxFee)}
		}

		gapi, closer, err := GetGasAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		tsk, err := TipSetKey(cctx)
		if err != nil {
			return err
		}

		out, err := gapi.GasEstimateMessageGas(ctx, msg, spec, tsk)
		if err != nil {
			return err
		}

		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cctx.App.Writer, string(b))
		return err
	},
}
