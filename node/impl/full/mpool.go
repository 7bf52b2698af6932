package full

import (
	"context"

	"github.com/ipfs/go-cid"
	"go.uber.org/fx"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"

	"github.com/filecoin-project/lotus-gasest/chain/types"
)

// MessagePoolAPI is the part of the message pool served by MpoolModule.
type MessagePoolAPI interface {
	Add(ctx context.Context, m *types.SignedMessage) error
	Pending(ctx context.Context) ([]*types.SignedMessage, *types.TipSet)
	GetNonce(ctx context.Context, addr address.Address) uint64
}

type MpoolModule struct {
	fx.In

	Pool MessagePoolAPI
}

func (a *MpoolModule) MpoolGetNonce(ctx context.Context, addr address.Address) (uint64, error) {
	return a.Pool.GetNonce(ctx, addr), nil
}

// MpoolPending returns every pending message. A non-empty tsk must be the
// tipset the pool is currently based on.
func (a *MpoolModule) MpoolPending(ctx context.Context, tsk types.TipSetKey) ([]*types.SignedMessage, error) {
	pending, ts := a.Pool.Pending(ctx)
	if tsk.IsEmpty() {
		return pending, nil
	}

	if ts == nil || ts.Key() != tsk {
		var base types.TipSetKey
		if ts != nil {
			base = ts.Key()
		}
		return nil, xerrors.Errorf("mpool is based on %s, not %s", base, tsk)
	}
	return pending, nil
}

// MpoolPush admits smsg to the pool, replacing a pending message with the same
// nonce only if the premium clears the replace-by-fee bump.
func (a *MpoolModule) MpoolPush(ctx context.Context, smsg *types.SignedMessage) (cid.Cid, error) {
	if smsg == nil {
		return cid.Undef, xerrors.New("no message given")
	}
	if err := a.Pool.Add(ctx, smsg); err != nil {
		return cid.Undef, xerrors.Errorf("mpool push: %w", err)
	}

	log.Infow("mpool push", "cid", smsg.Cid(), "from", smsg.Message.From, "nonce", smsg.Message.Nonce)
	return smsg.Cid(), nil
}
