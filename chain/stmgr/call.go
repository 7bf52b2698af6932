package stmgr

import (
	"context"
	"time"

	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/filecoin-project/lotus-gasest/api"
	"github.com/filecoin-project/lotus-gasest/chain/types"
)

// CallWithGas speculatively applies msg on top of ts (the head if nil) after
// priorMsgs. The invocation runs on one of the execution lanes; waiting for a
// lane and for the result both stop when ctx is done.
func (sm *StateManager) CallWithGas(ctx context.Context, msg *types.Message, priorMsgs []types.ChainMsg, ts *types.TipSet) (*api.InvocResult, error) {
	if ts == nil {
		ts = sm.cs.GetHeaviestTipSet()
	}
	if ts == nil {
		return nil, xerrors.Errorf("no tipset to call on")
	}

	if sm.hasExpensiveFork(ts.Height()) {
		return nil, ErrExpensiveFork
	}

	if sm.invoker == nil {
		return nil, ErrNoInvoker
	}

	token, err := sm.execution.getToken(ctx)
	if err != nil {
		return nil, xerrors.Errorf("waiting for execution lane: %w", err)
	}

	type result struct {
		rct *types.MessageReceipt
		err error
	}

	start := time.Now()
	done := make(chan result, 1)
	go func() {
		defer token.Done()
		rct, err := sm.invoker.Invoke(ctx, msg, priorMsgs, ts)
		done <- result{rct: rct, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if res.err != nil {
		return nil, xerrors.Errorf("apply message failed: %w", res.err)
	}

	var errs string
	if res.rct != nil && res.rct.ExitCode != exitcode.Ok {
		errs = res.rct.ExitCode.String()
		log.Debugw("call exited with error", "msg", msg.Cid(), "exitcode", res.rct.ExitCode)
	}

	return &api.InvocResult{
		MsgCid:   msg.Cid(),
		Msg:      msg,
		MsgRct:   res.rct,
		Error:    errs,
		Duration: time.Since(start),
	}, nil
}
