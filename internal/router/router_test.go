package router

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/AlexZinkM/xdaghub/internal/broker"
	"github.com/AlexZinkM/xdaghub/internal/crypto"
	"github.com/AlexZinkM/xdaghub/internal/keyring"
	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/network"
	"github.com/AlexZinkM/xdaghub/internal/store"
	"github.com/AlexZinkM/xdaghub/internal/surface"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

var (
	ui   = Source{UI: true, Origin: "wallet"}
	dapp = Source{Origin: "https://dapp.example", FavIcon: "https://dapp.example/icon.png"}
)

type harness struct {
	router   *Router
	keyring  *keyring.Keyring
	surfaces *surface.Registry
	txs      *broker.Transactions
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewTestClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	cfg := keyring.DefaultConfig()
	cfg.Scrypt = crypto.WithN(1 << 4)
	st := store.NewMemory()
	kr := keyring.New(cfg, st, store.NewMemory(), clk)
	reg := surface.NewRegistry(clk)
	txs := broker.NewTransactions(st, reg, clk)
	nets, err := network.NewManager(st, map[network.Env]string{
		network.Mainnet: "https://mainnet.example",
		network.Testnet: "https://testnet.example",
	}, network.Mainnet, nil)
	require.NoError(t, err)
	return &harness{
		router:   New(kr, txs, broker.NewInscriptions(st, reg, clk), nets),
		keyring:  kr,
		surfaces: reg,
		txs:      txs,
	}
}

func keyringMsg(method string, args any) Message {
	var raw json.RawMessage
	if args != nil {
		raw, _ = json.Marshal(args)
	}
	return Message{ID: method, Payload: KeyringRequest{Method: method, Args: raw}}
}

func (h *harness) call(t *testing.T, method string, args any) KeyringResponse {
	t.Helper()
	resp := h.router.Handle(context.Background(), keyringMsg(method, args), ui)
	require.Equal(t, method, resp.ID)
	if e, ok := resp.Payload.(ErrorPayload); ok {
		t.Fatalf("%s failed: %s", method, e.Message)
	}
	return resp.Payload.(KeyringResponse)
}

func (h *harness) callErr(t *testing.T, method string, args any) ErrorPayload {
	t.Helper()
	resp := h.router.Handle(context.Background(), keyringMsg(method, args), ui)
	e, ok := resp.Payload.(ErrorPayload)
	require.True(t, ok, "%s should fail", method)
	require.Equal(t, -1, e.Code)
	require.True(t, e.Error)
	return e
}

func TestKeyringMethods(t *testing.T) {
	h := newHarness(t)
	pw := map[string]string{"password": "hunter22"}

	h.call(t, "create", map[string]string{"password": "hunter22", "importedEntropy": "000102030405060708090a0b0c0d0e0f"})
	status := h.call(t, "walletStatusUpdate", nil).Return.(*WalletStatus)
	require.True(t, status.IsLocked)
	require.True(t, status.IsInitialized)
	require.Empty(t, status.Accounts)

	e := h.callErr(t, "unlock", map[string]string{"password": "wrong"})
	require.Contains(t, e.Message, model.ErrAuthentication.Error())

	h.call(t, "unlock", pw)
	status = h.call(t, "walletStatusUpdate", nil).Return.(*WalletStatus)
	require.False(t, status.IsLocked)
	require.Len(t, status.Accounts, 1)
	require.Equal(t, status.Accounts[0].Address, *status.ActiveAddress)

	derived := h.call(t, "deriveNextAccount", nil).Return.(map[string]string)["accountAddress"]
	h.call(t, "switchAccount", map[string]string{"address": derived})
	status = h.call(t, "walletStatusUpdate", nil).Return.(*WalletStatus)
	require.Equal(t, derived, *status.ActiveAddress)
	h.callErr(t, "switchAccount", map[string]string{"address": "unknown"})

	entropy := h.call(t, "getEntropy", pw).Return.(string)
	require.Equal(t, "000102030405060708090a0b0c0d0e0f", entropy)
	h.callErr(t, "getEntropy", nil)
	e = h.callErr(t, "getEntropy", map[string]string{"password": ""})
	require.Contains(t, e.Message, model.ErrAuthentication.Error())
	e = h.callErr(t, "getEntropy", map[string]string{"password": "wrong"})
	require.Contains(t, e.Message, model.ErrAuthentication.Error())

	exported := h.call(t, "exportAccount", map[string]string{"password": "hunter22", "accountAddress": derived})
	require.Equal(t, keyring.SchemeSecp256k1, exported.Return.(map[string]any)["keyPair"].(*model.ExportedKeypair).Schema)

	e = h.callErr(t, "importPrivateKey", map[string]any{
		"password": "hunter22",
		"keyPair":  exported.Return.(map[string]any)["keyPair"],
	})
	require.Contains(t, e.Message, keyring.ErrDuplicateAccount.Error())

	sig := h.call(t, "signData", map[string]string{
		"address": derived,
		"data":    "0101010101010101010101010101010101010101010101010101010101010101",
	}).Return.(string)
	parsed, err := keyring.ParseSignature(sig)
	require.NoError(t, err)
	require.Equal(t, keyring.FlagSecp256k1, parsed.Flag)

	h.call(t, "setLockTimeout", map[string]int{"timeout": 5})
	h.call(t, "appStatusUpdate", map[string]bool{"active": true})
	h.call(t, "verifyPassword", pw)

	h.call(t, "lock", nil)
	require.True(t, h.keyring.IsLocked())
	h.callErr(t, "getEntropy", pw)
	h.callErr(t, "deriveNextAccount", nil)

	h.call(t, "clear", nil)
	status = h.call(t, "walletStatusUpdate", nil).Return.(*WalletStatus)
	require.False(t, status.IsInitialized)

	h.callErr(t, "noSuchMethod", nil)
	h.callErr(t, "unlock", nil)
}

func TestDappCannotCallUIPayloads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, p := range []Payload{
		KeyringRequest{Method: "lock"},
		TransactionRequestResponse{TxID: "x", Approved: true},
		InscriptionRequestResponse{InscID: "x", Approved: true},
		GetTransactionRequests{},
		GetInscriptionRequests{},
		SetNetwork{Network: network.Active{Env: network.Testnet}},
	} {
		resp := h.router.Handle(ctx, Message{ID: "1", Payload: p}, dapp)
		e, ok := resp.Payload.(ErrorPayload)
		require.True(t, ok, p.payloadType())
		require.Contains(t, e.Message, "not allowed")
	}
}

func TestNetworkPayloads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp := h.router.Handle(ctx, Message{ID: "n1", Payload: GetNetwork{}}, dapp)
	require.Equal(t, SetNetwork{Network: network.Active{Env: network.Mainnet, FullNode: "https://mainnet.example"}}, resp.Payload)

	resp = h.router.Handle(ctx, Message{ID: "n2", Payload: SetNetwork{Network: network.Active{
		Env: network.CustomRPC, FullNode: "not a url",
	}}}, ui)
	e, ok := resp.Payload.(ErrorPayload)
	require.True(t, ok)
	require.Contains(t, e.Message, "invalid custom RPC url")

	resp = h.router.Handle(ctx, Message{ID: "n3", Payload: SetNetwork{Network: network.Active{Env: network.Testnet}}}, ui)
	require.Equal(t, SetNetwork{Network: network.Active{Env: network.Testnet, FullNode: "https://testnet.example"}}, resp.Payload)

	resp = h.router.Handle(ctx, Message{ID: "n4", Payload: GetNetwork{}}, ui)
	require.Equal(t, network.Testnet, resp.Payload.(SetNetwork).Network.Env)
}

func TestTransactionRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	done := make(chan Message, 1)
	go func() {
		done <- h.router.Handle(ctx, Message{ID: "dapp-1", Payload: ExecuteTransactionRequest{
			Transaction: model.TransactionDataType{ToAddress: "to", Amount: "1"},
		}}, dapp)
	}()

	var id string
	require.Eventually(t, func() bool {
		windows := h.surfaces.List()
		if len(windows) == 0 {
			return false
		}
		id = windows[0].RequestID
		return true
	}, 5*time.Second, time.Millisecond)

	list := h.router.Handle(ctx, Message{ID: "ui-1", Payload: GetTransactionRequests{}}, ui)
	reqs := list.Payload.(GetTransactionRequestsResponse).TxRequests
	require.Len(t, reqs, 1)
	require.Equal(t, dapp.Origin, reqs[0].Origin)
	require.Equal(t, "transaction", reqs[0].Payload.Tx.Type)

	resp := h.router.Handle(ctx, Message{ID: "ui-2", Payload: TransactionRequestResponse{
		TxID:     id,
		Approved: true,
		TxResult: &model.TransactionResult{Block: &model.TransactionBlockResponse{Address: "blk"}},
	}}, ui)
	require.Equal(t, Done{}, resp.Payload)

	out := <-done
	require.Equal(t, "dapp-1", out.ID)
	require.Equal(t, "blk", out.Payload.(ExecuteTransactionResponse).Result.Block.Address)

	// the request is gone, a late decision fails
	resp = h.router.Handle(ctx, Message{ID: "ui-3", Payload: TransactionRequestResponse{TxID: id}}, ui)
	require.IsType(t, ErrorPayload{}, resp.Payload)
}

func TestSurfaceClosedRejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	done := make(chan Message, 1)
	go func() {
		done <- h.router.Handle(ctx, Message{ID: "m", Payload: SignMessageRequest{
			Args: model.SignMessageDataType{AccountAddress: "a", Message: "aGk="},
		}}, dapp)
	}()

	require.Eventually(t, func() bool { return len(h.surfaces.List()) == 1 }, 5*time.Second, time.Millisecond)
	require.NoError(t, h.surfaces.Close(h.surfaces.List()[0].RequestID))

	out := <-done
	e := out.Payload.(ErrorPayload)
	require.Equal(t, "rejected from user", e.Message)
}

func TestMessageJSON(t *testing.T) {
	var msg Message
	raw := `{"id":"7","payload":{"type":"keyring","method":"unlock","args":{"password":"pw"}}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	require.Equal(t, "7", msg.ID)
	req := msg.Payload.(KeyringRequest)
	require.Equal(t, "unlock", req.Method)
	require.JSONEq(t, `{"password":"pw"}`, string(req.Args))

	raw = `{"id":"8","payload":{"type":"execute-transaction-request","transaction":{"type":"transaction","toAddress":"t","amount":"1"}}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	require.Equal(t, "t", msg.Payload.(ExecuteTransactionRequest).Transaction.ToAddress)

	err := json.Unmarshal([]byte(`{"id":"9","payload":{"type":"error"}}`), &msg)
	require.ErrorIs(t, err, model.ErrValidation)

	out, err := json.Marshal(Message{ID: "7", Payload: ErrorPayload{Code: -1, Error: true, Message: "boom"}})
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"7","payload":{"type":"error","code":-1,"error":true,"message":"boom"}}`, string(out))

	out, err = json.Marshal(Message{ID: "8", Payload: Done{}})
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"8","payload":{"type":"done"}}`, string(out))
}
