// Package main implements the quartz-enclaved process entrypoint: it wires
// configuration, logging, the session key manager, the attestor, the
// request processor, and the event dispatcher into a running gRPC server.
//
// This binary deliberately does not implement quartz's CLI scaffolding
// (init/build/deploy/template rendering) — those remain an external
// collaborator per the design's explicit scope. It only starts the
// off-chain enclave host process that scaffolding would eventually
// deploy. The on-chain contract-side handler (x/quartz/keeper) runs
// inside the settlement chain's own binary, not here.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"github.com/virtengine/quartz/internal/dispatcher"
	"github.com/virtengine/quartz/internal/grpcserver"
	"github.com/virtengine/quartz/internal/handshake"
	"github.com/virtengine/quartz/internal/processor"
	"github.com/virtengine/quartz/pkg/attestor"
	"github.com/virtengine/quartz/pkg/keymanager"
	"github.com/virtengine/quartz/pkg/merkle"
	"github.com/virtengine/quartz/pkg/quartztypes"
)

const (
	// FlagChainID is the settlement chain's chain ID. This binary only
	// reports it in its startup log; it runs no light client that checks it.
	FlagChainID = "chain-id"

	// FlagNodeURL is the ledger full node's RPC endpoint (http(s) for
	// status polling, ws(s) for the event subscription).
	FlagNodeURL = "node-url"

	// FlagEnclaveRPCAddr is the listen address for this process's gRPC
	// surface (the Settlement service).
	FlagEnclaveRPCAddr = "enclave-rpc-addr"

	// FlagMockSGX selects the Mock attestor/verifier path for development
	// and CI builds without real SGX hardware.
	FlagMockSGX = "mock-sgx"

	// FlagMrEnclave is the hex-encoded code measurement this process
	// reports when mock-sgx is set (ignored for real DCAP quotes, which
	// derive it from the platform).
	FlagMrEnclave = "mr-enclave"

	// FlagDispatch enables the websocket event dispatcher in addition to
	// serving gRPC; disabled by default so the gRPC surface can be driven
	// directly in development without a live node-url.
	FlagDispatch = "dispatch"

	// FlagSessionProofFile points at a JSON file carrying the light-client
	// anchored membership proof that this process's session nonce was
	// actually committed by the settlement chain's SessionCreate handler —
	// the off-chain driver that ran Instantiate and verified the resulting
	// header is expected to write this file before the enclave starts.
	// Required unless FlagSkipSessionProof is set.
	FlagSessionProofFile = "session-proof-file"

	// FlagSkipSessionProof bypasses the session nonce publication check,
	// for local development against a node-url that isn't actually running.
	FlagSkipSessionProof = "insecure-skip-session-proof"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "quartz-enclaved",
		Short: "Runs the quartz enclave host process: gRPC surface and, optionally, the event dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v)
		},
	}

	flags := root.Flags()
	flags.String(FlagChainID, "quartz-testnet-1", "settlement chain ID the light client trusts")
	flags.String(FlagNodeURL, "http://localhost:26657", "ledger full node RPC endpoint")
	flags.String(FlagEnclaveRPCAddr, "0.0.0.0:9090", "listen address for the Settlement gRPC surface")
	flags.Bool(FlagMockSGX, true, "use the Mock attestor/verifier instead of real SGX DCAP")
	flags.String(FlagMrEnclave, "", "hex-encoded mr_enclave reported under --mock-sgx")
	flags.Bool(FlagDispatch, false, "subscribe to the node's websocket event stream and run the dispatcher consumer loop")
	flags.String(FlagSessionProofFile, "", "path to a JSON proof that this process's session nonce was published on-chain (required unless --"+FlagSkipSessionProof+")")
	flags.Bool(FlagSkipSessionProof, false, "skip the session nonce proof-of-publication check (development only)")

	if err := v.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("quartz-enclaved: bind flags: %v", err))
	}
	v.SetEnvPrefix("QUARTZ")
	v.AutomaticEnv()

	return root
}

func run(ctx context.Context, v *viper.Viper) error {
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("service", "quartz-enclaved").Logger()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mrEnclave, err := parseMrEnclave(v.GetString(FlagMrEnclave))
	if err != nil {
		return fmt.Errorf("quartz-enclaved: %w", err)
	}

	if err := verifySessionProof(v, log, mrEnclave); err != nil {
		return fmt.Errorf("quartz-enclaved: %w", err)
	}

	km, err := keymanager.New()
	if err != nil {
		return fmt.Errorf("quartz-enclaved: init key manager: %w", err)
	}

	var att attestor.Attestor
	if v.GetBool(FlagMockSGX) {
		att = attestor.NewMockAttestor(mrEnclave)
		log.Warn().Msg("running with the Mock attestor — no real SGX hardware backs these attestations")
	} else {
		return fmt.Errorf("quartz-enclaved: real DCAP attestor requires a platform-specific quote source, not wired in this build")
	}

	proc := processor.New(km, att)
	settlement := grpcserver.NewSettlementService(proc, merkle.New())

	srv := grpc.NewServer()
	grpcserver.RegisterSettlement(srv, settlement)

	lis, err := net.Listen("tcp", v.GetString(FlagEnclaveRPCAddr))
	if err != nil {
		return fmt.Errorf("quartz-enclaved: listen on %s: %w", v.GetString(FlagEnclaveRPCAddr), err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(lis) }()
	log.Info().Str("addr", v.GetString(FlagEnclaveRPCAddr)).Str("chain_id", v.GetString(FlagChainID)).Msg("quartz-enclaved listening")

	if v.GetBool(FlagDispatch) {
		go runDispatcher(ctx, v, log)
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		stopped := make(chan struct{})
		go func() { srv.GracefulStop(); close(stopped) }()
		select {
		case <-stopped:
		case <-time.After(10 * time.Second):
			srv.Stop()
		}
		return nil
	case err := <-serveErr:
		return fmt.Errorf("quartz-enclaved: grpc server exited: %w", err)
	}
}

// runDispatcher dials the node's websocket event stream and drives the
// dispatcher's producer/consumer pipeline until ctx is cancelled, logging
// (rather than propagating) connection failures so a dispatcher outage
// never brings down the gRPC surface.
func runDispatcher(ctx context.Context, v *viper.Viper, log zerolog.Logger) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL(v.GetString(FlagNodeURL)), nil)
	if err != nil {
		log.Error().Err(err).Msg("dispatcher: dial node websocket")
		return
	}
	defer conn.Close()

	waiter := &statusPollWaiter{nodeURL: v.GetString(FlagNodeURL), client: &http.Client{Timeout: 5 * time.Second}}
	handler := func(ctx context.Context, ev dispatcher.Event) error {
		log.Info().Str("event_id", ev.ID).Str("event_kind", ev.Kind).Msg("dispatcher: event confirmed, ready for proof-of-publication + processor.Run")
		return nil
	}

	d := dispatcher.New(conn, waiter, handler, log)
	if err := d.Run(ctx); err != nil {
		log.Error().Err(err).Msg("dispatcher: run exited")
	}
}

func wsURL(nodeURL string) string {
	switch {
	case strings.HasPrefix(nodeURL, "https://"):
		nodeURL = "wss://" + strings.TrimPrefix(nodeURL, "https://")
	case strings.HasPrefix(nodeURL, "http://"):
		nodeURL = "ws://" + strings.TrimPrefix(nodeURL, "http://")
	}
	return nodeURL + "/websocket"
}

// statusPollWaiter implements dispatcher.BlockWaiter by polling the node's
// /status endpoint until n further blocks have been produced. It is
// deliberately minimal — a generic ledger RPC client is an external
// collaborator per the design's scope, and this is the one query the
// dispatcher's two-block wait rule actually needs.
type statusPollWaiter struct {
	nodeURL string
	client  *http.Client
}

type statusResponse struct {
	Result struct {
		SyncInfo struct {
			LatestBlockHeight string `json:"latest_block_height"`
		} `json:"sync_info"`
	} `json:"result"`
}

func (w *statusPollWaiter) WaitBlocks(ctx context.Context, n uint64) error {
	start, err := w.latestHeight(ctx)
	if err != nil {
		return err
	}
	target := start + n

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			height, err := w.latestHeight(ctx)
			if err != nil {
				continue
			}
			if height >= target {
				return nil
			}
		}
	}
}

func (w *statusPollWaiter) latestHeight(ctx context.Context) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.nodeURL+"/status", nil)
	if err != nil {
		return 0, fmt.Errorf("statusPollWaiter: build request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("statusPollWaiter: query status: %w", err)
	}
	defer resp.Body.Close()

	var parsed statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("statusPollWaiter: decode status: %w", err)
	}

	var height uint64
	if _, err := fmt.Sscanf(parsed.Result.SyncInfo.LatestBlockHeight, "%d", &height); err != nil {
		return 0, fmt.Errorf("statusPollWaiter: parse height %q: %w", parsed.Result.SyncInfo.LatestBlockHeight, err)
	}
	return height, nil
}

// sessionProofFile is the on-disk shape of FlagSessionProofFile: the pieces
// handshake.VerifyNoncePublished needs to check that this process's session
// nonce was actually committed by the settlement chain, under an app hash a
// light client has already verified upstream of this process.
type sessionProofFile struct {
	Nonce      string `json:"nonce"`
	AppHash    string `json:"app_hash"`
	StoreProof string `json:"store_proof"`
}

// verifySessionProof refuses to let the enclave proceed to key generation
// unless it can show, via a light-client-anchored membership proof, that
// its session nonce was genuinely published on the settlement chain — the
// "hard core" guarantee that a caller who never ran SessionCreate on-chain
// cannot obtain a live session key. FlagSkipSessionProof exists only to
// unblock local development against a node-url that isn't actually up.
func verifySessionProof(v *viper.Viper, log zerolog.Logger, mrEnclave quartztypes.MrEnclave) error {
	if v.GetBool(FlagSkipSessionProof) {
		log.Warn().Msg("skipping session nonce proof-of-publication check — key generation is not gated on-chain")
		return nil
	}

	path := v.GetString(FlagSessionProofFile)
	if path == "" {
		return fmt.Errorf("--%s is required unless --%s is set", FlagSessionProofFile, FlagSkipSessionProof)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read session proof file %q: %w", path, err)
	}

	var pf sessionProofFile
	if err := json.Unmarshal(raw, &pf); err != nil {
		return fmt.Errorf("parse session proof file %q: %w", path, err)
	}

	nonceBytes, err := hex.DecodeString(pf.Nonce)
	if err != nil || len(nonceBytes) != len(quartztypes.Nonce{}) {
		return fmt.Errorf("session proof file %q: invalid nonce", path)
	}
	var nonce quartztypes.Nonce
	copy(nonce[:], nonceBytes)

	appHash, err := hex.DecodeString(pf.AppHash)
	if err != nil {
		return fmt.Errorf("session proof file %q: invalid app_hash: %w", path, err)
	}

	storeProof, err := hex.DecodeString(pf.StoreProof)
	if err != nil {
		return fmt.Errorf("session proof file %q: invalid store_proof: %w", path, err)
	}

	if err := handshake.VerifyNoncePublished(merkle.New(), quartztypes.AppHash(appHash), nonce, mrEnclave, storeProof); err != nil {
		return fmt.Errorf("verify session nonce publication: %w", err)
	}

	log.Info().Msg("session nonce publication verified; proceeding to generate session key")
	return nil
}

func parseMrEnclave(hexStr string) (quartztypes.MrEnclave, error) {
	var me quartztypes.MrEnclave
	if hexStr == "" {
		return me, nil
	}
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return me, fmt.Errorf("parse mr_enclave hex %q: %w", hexStr, err)
	}
	if len(decoded) != len(me) {
		return me, fmt.Errorf("parse mr_enclave hex %q: want %d bytes, got %d", hexStr, len(me), len(decoded))
	}
	copy(me[:], decoded)
	return me, nil
}
