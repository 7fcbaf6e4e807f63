package xdag

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/AlexZinkM/xdaghub/internal/broker"
	"github.com/AlexZinkM/xdaghub/internal/chunk"
	"github.com/AlexZinkM/xdaghub/internal/client"
	"github.com/AlexZinkM/xdaghub/internal/client/nodetest"
	"github.com/AlexZinkM/xdaghub/internal/crypto"
	"github.com/AlexZinkM/xdaghub/internal/keyring"
	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/store"
	"github.com/AlexZinkM/xdaghub/internal/surface"
	"github.com/AlexZinkM/xdaghub/internal/txcodec"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

var testPassword = []byte("correct horse")

type harness struct {
	node    *nodetest.Node
	clock   *clock.TestClock
	keyring *keyring.Keyring
	service *Service
	from    string
	to      string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	node := nodetest.New()
	t.Cleanup(node.Close)
	c, err := client.NewXDAGClient(node.URL())
	require.NoError(t, err)
	c.PollInterval = time.Millisecond

	clk := clock.NewTestClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	cfg := keyring.DefaultConfig()
	cfg.Scrypt = crypto.WithN(1 << 4)
	kr := keyring.New(cfg, store.NewMemory(), store.NewMemory(), clk)

	qr, err := CreateWallet(ctx, kr, testPassword, "")
	require.NoError(t, err)
	require.NotEmpty(t, qr.QR)

	second, err := kr.DeriveNextAccount(ctx)
	require.NoError(t, err)

	node.Balances[qr.Address] = "1000.000000000"
	return &harness{
		node:    node,
		clock:   clk,
		keyring: kr,
		service: NewService(kr, c, Options{Network: txcodec.Testnet, Clock: clk}),
		from:    qr.Address,
		to:      second.Address(),
	}
}

// remarkOf extracts the remark field of a finalized transfer.
func remarkOf(t *testing.T, wire string) string {
	t.Helper()
	raw, err := hex.DecodeString(wire[4*64 : 5*64])
	require.NoError(t, err)
	return strings.TrimRight(string(raw), "\x00")
}

func TestCreateWalletQR(t *testing.T) {
	h := newHarness(t)
	require.True(t, txcodec.IsValidAddress(h.from))

	qr, err := AddressQR(h.from)
	require.NoError(t, err)
	png, err := base64.StdEncoding.DecodeString(qr.QR)
	require.NoError(t, err)
	require.Equal(t, "\x89PNG", string(png[:4]))
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	block, err := h.service.Transfer(ctx, model.PayRequest{ToAddress: h.to, Amount: "1.5", Remark: "hello"})
	require.NoError(t, err)
	require.Equal(t, "block1", block.Address)

	submitted := h.node.Submitted()
	require.Len(t, submitted, 1)
	require.Len(t, submitted[0], 16*64)
	require.Equal(t, "hello", remarkOf(t, submitted[0]))
}

func TestTransferValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	cases := []model.PayRequest{
		{ToAddress: "not-an-address", Amount: "1"},
		{ToAddress: h.to, Amount: "0"},
		{ToAddress: h.to, Amount: "abc"},
		{ToAddress: h.to, Amount: "5000"},
	}
	for _, req := range cases {
		_, err := h.service.Transfer(ctx, req)
		require.ErrorIs(t, err, model.ErrValidation, "%+v", req)
	}
	require.Empty(t, h.node.Submitted())
}

func TestTransferTruncatesRemark(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	long := strings.Repeat("r", 31) + "日本"
	_, err := h.service.Transfer(ctx, model.PayRequest{ToAddress: h.to, Amount: "1", Remark: long})
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("r", 31), remarkOf(t, h.node.Submitted()[0]))
}

func TestTransferCooldown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	svc := NewService(h.keyring, h.service.node, Options{
		Network:          txcodec.Testnet,
		TransferCooldown: 4 * time.Minute,
		Clock:            h.clock,
	})
	req := model.PayRequest{ToAddress: h.to, Amount: "1"}

	_, err := svc.Transfer(ctx, req)
	require.NoError(t, err)

	h.clock.SetTime(h.clock.Now().Add(time.Minute))
	_, err = svc.Transfer(ctx, req)
	require.ErrorIs(t, err, model.ErrState)
	require.Contains(t, err.Error(), "3m0s")
	require.Len(t, h.node.Submitted(), 1)

	// other accounts are not held back
	_, err = svc.Transfer(ctx, model.PayRequest{FromAddress: h.to, ToAddress: h.from, Amount: "0.5"})
	require.ErrorIs(t, err, model.ErrValidation, "second account has no balance")

	h.clock.SetTime(h.clock.Now().Add(3 * time.Minute))
	_, err = svc.Transfer(ctx, req)
	require.NoError(t, err)
	require.Len(t, h.node.Submitted(), 2)
}

func TestSetNetwork(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.Equal(t, txcodec.Testnet, h.service.Network())

	req := model.PayRequest{ToAddress: h.to, Amount: "1"}
	_, err := h.service.Transfer(ctx, req)
	require.NoError(t, err)

	h.service.SetNetwork(txcodec.Mainnet)
	require.Equal(t, txcodec.Mainnet, h.service.Network())
	_, err = h.service.Transfer(ctx, req)
	require.NoError(t, err)

	submitted := h.node.Submitted()
	require.Len(t, submitted, 2)
	require.NotEqual(t, submitted[0][:64], submitted[1][:64])
}

func TestTransferLocked(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.keyring.Lock(ctx))

	_, err := h.service.Transfer(ctx, model.PayRequest{ToAddress: h.to, Amount: "1"})
	require.ErrorIs(t, err, model.ErrLocked)
}

func TestSignTransaction(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	nonce := "7"

	signed, err := h.service.SignTransaction(ctx, model.TransactionDataType{
		AccountAddress: h.from, ToAddress: h.to, Amount: "2", Nonce: &nonce,
	})
	require.NoError(t, err)
	require.Empty(t, h.node.Submitted())
	require.Zero(t, h.node.Calls("xdag_getTransactionNonce"))

	acc, err := h.keyring.Account(h.from)
	require.NoError(t, err)
	b := &txcodec.Builder{
		Sender: h.from, Receiver: h.to, Amount: "2", Nonce: nonce,
		PublicKey: acc.PublicKey(), Network: txcodec.Testnet, Time: h.clock.Now(),
	}
	digest, err := b.Digest()
	require.NoError(t, err)

	ok, err := keyring.VerifyDigest(signed.Signature, digest)
	require.NoError(t, err)
	require.True(t, ok)

	parsed, err := keyring.ParseSignature(signed.Signature)
	require.NoError(t, err)
	wire, err := b.Finalize(parsed.Signature)
	require.NoError(t, err)
	require.Equal(t, wire, signed.TransactionBlockBytes)
}

func TestSignMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	msg := base64.StdEncoding.EncodeToString([]byte("sign in to example.com"))

	signed, err := h.service.SignMessage(ctx, h.from, msg)
	require.NoError(t, err)
	require.Equal(t, msg, signed.MessageBytes)

	digest := blake2b.Sum256([]byte("sign in to example.com"))
	ok, err := keyring.VerifyDigest(signed.Signature, digest[:])
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.service.SignMessage(ctx, h.from, "%%%")
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestInscribeAndRestore(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	content := model.InscriptionContent{ObjID: "7", ImgStr: "iVBORw0KGgoAAAANSUhEUgAAAAEAAAAB", Txt: "gm"}
	insc := model.Inscription{InscriptionContent: content, AwardRatio: 2, ToAddress: h.to}

	enc, err := PrepareInscription(insc, "B3")
	require.NoError(t, err)

	sent, err := h.service.Inscribe(ctx, "", insc, "B3")
	require.NoError(t, err)
	require.Len(t, sent, len(enc.Chunks))

	submitted := h.node.Submitted()
	require.Len(t, submitted, len(enc.Chunks))

	start := h.clock.Now().UnixMilli()
	var history []model.HistoryEntry
	for i, wire := range submitted {
		remark := remarkOf(t, wire)
		require.Equal(t, enc.Chunks[i], remark)
		history = append(history, model.HistoryEntry{
			Direction: 1,
			Address:   sent[i],
			Amount:    "0.100000000",
			Time:      start + int64(i)*1000,
			Remark:    remark,
		})
	}
	// unrelated transfer
	history = append(history, model.HistoryEntry{Amount: "3.000000000", Time: start, Remark: "rent"})
	h.node.History[h.to] = history
	h.node.PageSize = 2

	restored, err := h.service.RestoreInscriptions(ctx, h.to)
	require.NoError(t, err)
	require.Len(t, restored, 1)
	require.Equal(t, content, *restored[0].Content)
	require.Equal(t, start, restored[0].Time)
}

func TestInscribeInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.node.Balances[h.from] = "0.100000000"

	_, err := h.service.Inscribe(ctx, "", model.Inscription{InscriptionString: "payload", ToAddress: h.to}, "!!")
	require.ErrorIs(t, err, model.ErrValidation)
	require.Empty(t, h.node.Submitted())
}

func TestGetBalance(t *testing.T) {
	h := newHarness(t)
	resp, err := h.service.GetBalance(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, h.from, resp.Address)
	require.Equal(t, "1000.000000000", resp.Balance)
}

func waitForSurface(t *testing.T, reg *surface.Registry) string {
	t.Helper()
	var id string
	require.Eventually(t, func() bool {
		windows := reg.List()
		if len(windows) == 0 {
			return false
		}
		id = windows[0].RequestID
		return true
	}, 5*time.Second, time.Millisecond)
	return id
}

func TestApproveTransaction(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	reg := surface.NewRegistry(h.clock)
	st := store.NewMemory()
	txs := broker.NewTransactions(st, reg, h.clock)
	approvals := NewApprovals(h.service, txs, broker.NewInscriptions(st, reg, h.clock), reg)

	type out struct {
		res *model.TransactionResult
		err error
	}
	done := make(chan out, 1)
	go func() {
		res, err := txs.ExecuteOrSignTransaction(ctx, model.TransactionDataType{
			AccountAddress: h.from, ToAddress: h.to, Amount: "3",
		}, "https://dapp.example", "")
		done <- out{res, err}
	}()

	id := waitForSurface(t, reg)
	require.NoError(t, approvals.DecideTransaction(ctx, id, true))
	require.ErrorIs(t, approvals.DecideTransaction(ctx, id, true), broker.ErrUnknownRequest)

	o := <-done
	require.NoError(t, o.err)
	require.Equal(t, "block1", o.res.Block.Address)
	require.Len(t, h.node.Submitted(), 1)
	require.Empty(t, reg.List())
}

func TestApproveTransactionFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.node.RejectSubmit = true
	reg := surface.NewRegistry(h.clock)
	st := store.NewMemory()
	txs := broker.NewTransactions(st, reg, h.clock)
	approvals := NewApprovals(h.service, txs, broker.NewInscriptions(st, reg, h.clock), reg)

	done := make(chan error, 1)
	go func() {
		_, err := txs.ExecuteOrSignTransaction(ctx, model.TransactionDataType{ToAddress: h.to, Amount: "3"}, "o", "")
		done <- err
	}()

	id := waitForSurface(t, reg)
	require.NoError(t, approvals.DecideTransaction(ctx, id, true))
	err := <-done
	require.ErrorIs(t, err, model.ErrSubmission)
}

func TestRejectTransaction(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	reg := surface.NewRegistry(h.clock)
	st := store.NewMemory()
	txs := broker.NewTransactions(st, reg, h.clock)
	approvals := NewApprovals(h.service, txs, broker.NewInscriptions(st, reg, h.clock), reg)

	done := make(chan error, 1)
	go func() {
		_, err := txs.SignMessage(ctx, h.from, "aGk=", "o", "")
		done <- err
	}()

	id := waitForSurface(t, reg)
	require.NoError(t, approvals.DecideTransaction(ctx, id, false))
	require.ErrorIs(t, <-done, model.ErrRejected)
	require.Empty(t, h.node.Submitted())
}

func TestApproveInscription(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	reg := surface.NewRegistry(h.clock)
	st := store.NewMemory()
	inscs := broker.NewInscriptions(st, reg, h.clock)
	approvals := NewApprovals(h.service, broker.NewTransactions(st, reg, h.clock), inscs, reg)

	type out struct {
		addrs []string
		err   error
	}
	done := make(chan out, 1)
	go func() {
		addrs, err := inscs.ExecuteInscription(ctx, model.Inscription{
			InscriptionString: strings.Repeat("z", 60), AwardRatio: 1, ToAddress: h.to,
		}, "o", "")
		done <- out{addrs, err}
	}()

	id := waitForSurface(t, reg)
	require.NoError(t, approvals.DecideInscription(ctx, id, true))
	o := <-done
	require.NoError(t, o.err)
	// 3 data fragments and the trailer
	require.Len(t, o.addrs, 4)

	remarks := make([]string, 0, 4)
	for _, wire := range h.node.Submitted() {
		remarks = append(remarks, remarkOf(t, wire))
	}
	payload, ok := chunk.Decode("!!", remarks)
	require.True(t, ok)
	require.Equal(t, strings.Repeat("z", 60), payload)
}
