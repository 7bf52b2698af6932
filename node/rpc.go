package node

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	"github.com/gorilla/mux"
	logging "github.com/ipfs/go-log/v2"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/filecoin-project/go-jsonrpc/auth"

	"github.com/filecoin-project/lotus-gasest/api"
)

var rpclog = logging.Logger("rpc")

// GasRPCHandler returns a gas estimation node handler, to be mounted as-is on
// the server. The API is served under the Filecoin namespace at /rpc/v1 and
// opencensus views are exported for prometheus at /debug/metrics.
// Requests bearing token get all permissions, the others only read ones.
func GasRPCHandler(a api.Gas, token []byte, opts ...jsonrpc.ServerOption) (http.Handler, error) {
	m := mux.NewRouter()

	rpcServer := jsonrpc.NewServer(append(opts, jsonrpc.WithServerErrors(api.RPCErrors))...)
	rpcServer.Register("Filecoin", api.PermissionedGasAPI(a))

	ah := &auth.Handler{
		Verify: tokenVerifier(token),
		Next:   rpcServer.ServeHTTP,
	}
	m.Handle("/rpc/v1", ah)

	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exporter, err := prometheus.NewExporter(prometheus.Options{
		Registry:  registry,
		Namespace: "lotus_gasest",
	})
	if err != nil {
		return nil, xerrors.Errorf("creating prometheus exporter: %w", err)
	}
	m.Handle("/debug/metrics", exporter)

	return m, nil
}

func tokenVerifier(token []byte) func(context.Context, string) ([]auth.Permission, error) {
	return func(_ context.Context, got string) ([]auth.Permission, error) {
		if len(token) == 0 {
			return nil, xerrors.New("no API token configured")
		}
		if subtle.ConstantTimeCompare(token, []byte(got)) != 1 {
			return nil, xerrors.New("invalid API token")
		}
		return api.AllPermissions, nil
	}
}

// ServeRPC starts serving h on addr. Requests running longer than timeout are
// cancelled. It returns the function stopping the server and the address it
// actually listens on.
func ServeRPC(h http.Handler, id string, addr string, timeout time.Duration) (StopFunc, string, error) {
	lst, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", xerrors.Errorf("could not listen: %w", err)
	}

	if timeout > 0 {
		h = withRequestTimeout(h, timeout)
	}

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		err := srv.Serve(lst)
		if err != http.ErrServerClosed {
			rpclog.Warnf("rpc server failed: %s", err)
		}
	}()

	rpclog.Infow("serving rpc", "id", id, "addr", lst.Addr().String())
	return srv.Shutdown, lst.Addr().String(), nil
}

// withRequestTimeout bounds the context of plain HTTP requests. Websocket
// connections are long-lived and left alone.
func withRequestTimeout(h http.Handler, timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") != "" {
			h.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}
