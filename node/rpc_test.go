package node

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-state-types/big"

	"github.com/filecoin-project/lotus-gasest/api/client"
	"github.com/filecoin-project/lotus-gasest/chain/types"
	"github.com/filecoin-project/lotus-gasest/chain/types/mock"
)

func TestGasRPCRoundTrip(t *testing.T) {
	ctx := context.Background()
	gas := startGasNode(t)

	h, err := GasRPCHandler(gas, []byte("secret"))
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	defer srv.Close()

	addr := "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/rpc/v1"
	remote, closer, err := client.NewGasRPC(ctx, addr, nil)
	require.NoError(t, err)
	defer closer()

	premium, err := remote.GasEstimateGasPremium(ctx, 1, mock.KeyAddress(1), 0, types.EmptyTSK)
	require.NoError(t, err)
	require.Equal(t, "200000", premium.String())

	msg := mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(2), 0)
	msg.GasPremium = types.EmptyInt
	msg.GasFeeCap = big.Zero()

	out, err := remote.GasEstimateMessageGas(ctx, msg, nil, types.EmptyTSK)
	require.NoError(t, err)
	require.Equal(t, msg.GasLimit, out.GasLimit)
	require.Equal(t, "100000", out.GasPremium.String())
	require.Equal(t, "101054", out.GasFeeCap.String())

	// typed errors keep their message across the wire
	_, err = remote.GasEstimateGasLimit(ctx, msg, types.EmptyTSK)
	require.ErrorContains(t, err, "message simulation failed")

	resp, err := http.Get(srv.URL + "/debug/metrics")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "go_goroutines")
}

func TestGasRPCPushNeedsToken(t *testing.T) {
	ctx := context.Background()
	gas := startGasNode(t)

	h, err := GasRPCHandler(gas, []byte("secret"))
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	defer srv.Close()

	addr := "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/rpc/v1"
	smsg := mock.GasMessage(mock.KeyAddress(1), 0, 10, 1000)

	anon, closer, err := client.NewGasRPC(ctx, addr, nil)
	require.NoError(t, err)
	defer closer()

	_, err = anon.MpoolPush(ctx, smsg)
	require.ErrorContains(t, err, "missing permission to invoke 'MpoolPush'")

	// reads need no token
	pending, err := anon.MpoolPending(ctx, types.EmptyTSK)
	require.NoError(t, err)
	require.Empty(t, pending)

	_, _, err = client.NewGasRPC(ctx, addr, http.Header{"Authorization": []string{"Bearer wrong"}})
	require.Error(t, err)

	authed, closer2, err := client.NewGasRPC(ctx, addr, http.Header{"Authorization": []string{"Bearer secret"}})
	require.NoError(t, err)
	defer closer2()

	c, err := authed.MpoolPush(ctx, smsg)
	require.NoError(t, err)
	require.Equal(t, smsg.Cid(), c)

	pending, err = anon.MpoolPending(ctx, types.EmptyTSK)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, smsg.Cid(), pending[0].Cid())

	nonce, err := anon.MpoolGetNonce(ctx, mock.KeyAddress(1))
	require.NoError(t, err)
	require.EqualValues(t, 1, nonce)
}

func TestServeRPC(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); !ok {
			_, _ = w.Write([]byte("no deadline"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	stop, addr, err := ServeRPC(h, "test", "127.0.0.1:0", time.Minute)
	require.NoError(t, err)
	defer stop(context.Background()) //nolint:errcheck

	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
}
