package cli

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/lotus-gasest/chain/types"
)

var tipsetFlag = &cli.StringFlag{
	Name:  "tipset",
	Usage: "comma separated block cids of the tipset to estimate against (default: head)",
}

func ParseTipSetString(ts string) ([]cid.Cid, error) {
	strs := strings.Split(ts, ",")

	var cids []cid.Cid
	for _, s := range strs {
		c, err := cid.Parse(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		cids = append(cids, c)
	}

	return cids, nil
}

// TipSetKey returns the key given with --tipset, or the empty key which
// selects the head.
func TipSetKey(cctx *cli.Context) (types.TipSetKey, error) {
	tss := cctx.String("tipset")
	if tss == "" {
		return types.EmptyTSK, nil
	}

	cids, err := ParseTipSetString(tss)
	if err != nil {
		return types.EmptyTSK, xerrors.Errorf("parsing tipset: %w", err)
	}
	return types.NewTipSetKey(cids...), nil
}

// readJSON decodes the JSON value at path into v, reading the app reader when
// path is "-".
func readJSON(cctx *cli.Context, path string, v interface{}) error {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(cctx.App.Reader)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return xerrors.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(b, v); err != nil {
		return xerrors.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func readMessage(cctx *cli.Context, path string) (*types.Message, error) {
	var msg types.Message
	if err := readJSON(cctx, path, &msg); err != nil {
		return nil, err
	}
	if msg.Version != types.MessageVersion {
		return nil, xerrors.Errorf("message had incorrect version (%d)", msg.Version)
	}
	return &msg, nil
}

func readSignedMessage(cctx *cli.Context, path string) (*types.SignedMessage, error) {
	var smsg types.SignedMessage
	if err := readJSON(cctx, path, &smsg); err != nil {
		return nil, err
	}
	if smsg.Message.Version != types.MessageVersion {
		return nil, xerrors.Errorf("message had incorrect version (%d)", smsg.Message.Version)
	}
	return &smsg, nil
}
