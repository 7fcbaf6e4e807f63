package keyring

import (
	"context"
	"crypto/sha256"
	"sort"
	"testing"
	"time"

	"github.com/AlexZinkM/xdaghub/internal/crypto"
	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/store"
	"github.com/AlexZinkM/xdaghub/internal/txcodec"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

const testEntropy = "000102030405060708090a0b0c0d0e0f"

var (
	testPassword = []byte("correct horse")
	testStart    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

type harness struct {
	durable *store.DatastoreStore
	session *store.DatastoreStore
	clock   *clock.TestClock
	keyring *Keyring
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		durable: store.NewMemory(),
		session: store.NewMemory(),
		clock:   clock.NewTestClock(testStart),
	}
	h.keyring = h.newKeyring()
	require.NoError(t, h.keyring.CreateVault(context.Background(), testPassword, testEntropy))
	return h
}

func (h *harness) newKeyring() *Keyring {
	cfg := DefaultConfig()
	cfg.Scrypt = crypto.WithN(1 << 4)
	return New(cfg, h.durable, h.session, h.clock)
}

func sortedAddresses(accounts []Account) []string {
	out := addresses(accounts)
	sort.Strings(out)
	return out
}

func addresses(accounts []Account) []string {
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.Address())
	}
	return out
}

func TestCreateVault(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	ok, err := h.keyring.IsWalletInitialized(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, h.keyring.IsLocked())

	err = h.keyring.CreateVault(ctx, testPassword, "")
	require.ErrorIs(t, err, model.ErrState)

	require.NoError(t, h.keyring.ClearVault(ctx))
	for _, bad := range []string{"zz", "0001", testEntropy + "00"} {
		err = h.keyring.CreateVault(ctx, testPassword, bad)
		require.ErrorIs(t, err, model.ErrValidation, bad)
	}

	require.NoError(t, h.keyring.CreateVault(ctx, testPassword, ""))
	require.NoError(t, h.keyring.Unlock(ctx, testPassword))
	entropy, err := h.keyring.Entropy()
	require.NoError(t, err)
	require.Len(t, entropy, 32)
}

func TestUnlockWrongPassword(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	err := h.keyring.Unlock(ctx, []byte("wrong"))
	require.ErrorIs(t, err, model.ErrAuthentication)
	require.True(t, h.keyring.IsLocked())
	require.Nil(t, h.keyring.Accounts())

	_, err = h.keyring.Entropy()
	require.ErrorIs(t, err, model.ErrLocked)
}

func TestUnlockDerivesReproducibly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	require.NoError(t, h.keyring.Unlock(ctx, testPassword))
	require.False(t, h.keyring.IsLocked())
	require.Len(t, h.keyring.Accounts(), 1)

	next, err := h.keyring.DeriveNextAccount(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Equal(t, DerivationPath(1), next.(*DerivedAccount).DerivationPath)

	before := addresses(h.keyring.Accounts())
	require.Len(t, before, 2)
	for _, addr := range before {
		require.True(t, txcodec.IsValidAddress(addr))
	}

	require.NoError(t, h.keyring.Lock(ctx))
	require.NoError(t, h.keyring.Lock(ctx))
	require.Nil(t, h.keyring.Accounts())

	acc, err := h.keyring.DeriveNextAccount(ctx)
	require.NoError(t, err)
	require.Nil(t, acc)

	require.NoError(t, h.keyring.Unlock(ctx, testPassword))
	require.Equal(t, before, addresses(h.keyring.Accounts()))

	entropy, err := h.keyring.Entropy()
	require.NoError(t, err)
	require.Equal(t, testEntropy, entropy)

	// a second keyring over the same store sees the same accounts
	other := h.newKeyring()
	require.NoError(t, other.Unlock(ctx, testPassword))
	require.Equal(t, sortedAddresses(h.keyring.Accounts()), sortedAddresses(other.Accounts()))
}

func TestActiveAccount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	acc, err := h.keyring.ActiveAccount(ctx)
	require.NoError(t, err)
	require.Nil(t, acc)

	ok, err := h.keyring.ChangeActiveAccount(ctx, "unknown")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, h.keyring.Unlock(ctx, testPassword))
	main, err := h.keyring.ActiveAccount(ctx)
	require.NoError(t, err)
	require.Equal(t, h.keyring.Accounts()[0].Address(), main.Address())

	second, err := h.keyring.DeriveNextAccount(ctx)
	require.NoError(t, err)

	ok, err = h.keyring.ChangeActiveAccount(ctx, "unknown")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = h.keyring.ChangeActiveAccount(ctx, second.Address())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, h.keyring.Lock(ctx))
	require.NoError(t, h.keyring.Unlock(ctx, testPassword))
	active, err := h.keyring.ActiveAccount(ctx)
	require.NoError(t, err)
	require.Equal(t, second.Address(), active.Address())
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	exp, err := h.keyring.ExportAccountKeypair(ctx, "any", testPassword)
	require.NoError(t, err)
	require.Nil(t, exp)

	secret := sha256.Sum256([]byte("external key material"))
	external, err := KeypairFromSecret(secret[:])
	require.NoError(t, err)

	_, err = h.keyring.ImportAccountKeypair(ctx, external.Export(), testPassword)
	require.ErrorIs(t, err, model.ErrLocked)

	require.NoError(t, h.keyring.Unlock(ctx, testPassword))
	main := h.keyring.Accounts()[0]

	_, err = h.keyring.ExportAccountKeypair(ctx, main.Address(), []byte("wrong"))
	require.ErrorIs(t, err, model.ErrAuthentication)

	exp, err = h.keyring.ExportAccountKeypair(ctx, "unknown", testPassword)
	require.NoError(t, err)
	require.Nil(t, exp)

	exp, err = h.keyring.ExportAccountKeypair(ctx, main.Address(), testPassword)
	require.NoError(t, err)
	require.Equal(t, SchemeSecp256k1, exp.Schema)

	// the derived key itself is a duplicate
	dup, err := h.keyring.ImportAccountKeypair(ctx, *exp, testPassword)
	require.ErrorIs(t, err, ErrDuplicateAccount)
	require.Nil(t, dup)

	_, err = h.keyring.ImportAccountKeypair(ctx, external.Export(), []byte("wrong"))
	require.ErrorIs(t, err, model.ErrAuthentication)

	imported, err := h.keyring.ImportAccountKeypair(ctx, external.Export(), testPassword)
	require.NoError(t, err)
	require.NotNil(t, imported)
	require.Equal(t, TypeImported, imported.Type())
	require.Equal(t, external.Address(), imported.Address())
	require.Len(t, h.keyring.Accounts(), 2)

	again, err := h.keyring.ImportAccountKeypair(ctx, external.Export(), testPassword)
	require.ErrorIs(t, err, ErrDuplicateAccount)
	require.ErrorIs(t, err, model.ErrState)
	require.Nil(t, again)

	// imported keys survive a lock cycle
	require.NoError(t, h.keyring.Lock(ctx))
	require.NoError(t, h.keyring.Unlock(ctx, testPassword))
	require.Contains(t, addresses(h.keyring.Accounts()), external.Address())

	_, err = h.keyring.ImportAccountKeypair(ctx, model.ExportedKeypair{Schema: "ED25519", PrivateKey: ""}, testPassword)
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestImportedKeyDoesNotReplaceDerived(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	// import the key of index 1 before it is derived
	seed, err := MnemonicSeed(mustEntropy(t))
	require.NoError(t, err)
	kp, err := DeriveKeypair(seed, 1)
	require.NoError(t, err)

	require.NoError(t, h.keyring.Unlock(ctx, testPassword))
	imported, err := h.keyring.ImportAccountKeypair(ctx, kp.Export(), testPassword)
	require.NoError(t, err)
	require.NotNil(t, imported)

	_, err = h.keyring.DeriveNextAccount(ctx)
	require.NoError(t, err)

	require.NoError(t, h.keyring.Lock(ctx))
	require.NoError(t, h.keyring.Unlock(ctx, testPassword))

	acc, err := h.keyring.Account(kp.Address())
	require.NoError(t, err)
	require.Equal(t, TypeDerived, acc.Type())
	require.Len(t, h.keyring.Accounts(), 2)
}

func mustEntropy(t *testing.T) []byte {
	e, err := ParseEntropy(testEntropy)
	require.NoError(t, err)
	return e
}

func TestSignData(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	digest := sha256.Sum256([]byte("payload"))
	digestHex := hexString(digest[:])

	_, err := h.keyring.SignData(ctx, "addr", digestHex)
	require.ErrorIs(t, err, model.ErrLocked)

	require.NoError(t, h.keyring.Unlock(ctx, testPassword))
	main := h.keyring.Accounts()[0]

	_, err = h.keyring.SignData(ctx, "unknown", digestHex)
	require.ErrorIs(t, err, model.ErrNotFound)

	sig, err := h.keyring.SignData(ctx, main.Address(), digestHex)
	require.NoError(t, err)

	parsed, err := ParseSignature(sig)
	require.NoError(t, err)
	require.Equal(t, FlagSecp256k1, parsed.Flag)
	require.Equal(t, main.PublicKey(), parsed.PublicKey)

	ok, err := VerifyDigest(sig, digest[:])
	require.NoError(t, err)
	require.True(t, ok)

	other := sha256.Sum256([]byte("other"))
	ok, err = VerifyDigest(sig, other[:])
	require.NoError(t, err)
	require.False(t, ok)

	// deterministic signatures
	again, err := h.keyring.SignData(ctx, main.Address(), digestHex)
	require.NoError(t, err)
	require.Equal(t, sig, again)

	_, err = h.keyring.SignData(ctx, main.Address(), "abcd")
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestAutoLock(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	require.NoError(t, h.keyring.Unlock(ctx, testPassword))

	h.clock.SetTime(testStart.Add(14 * time.Minute))
	require.False(t, h.keyring.IsLocked())

	h.clock.SetTime(testStart.Add(15 * time.Minute))
	require.Eventually(t, h.keyring.IsLocked, time.Second, 5*time.Millisecond)
}

func TestPostponeLock(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	require.NoError(t, h.keyring.Unlock(ctx, testPassword))

	h.clock.SetTime(testStart.Add(10 * time.Minute))
	require.NoError(t, h.keyring.PostponeLock(ctx))
	// throttled, does not re-arm again
	require.NoError(t, h.keyring.PostponeLock(ctx))

	h.clock.SetTime(testStart.Add(16 * time.Minute))
	time.Sleep(20 * time.Millisecond)
	require.False(t, h.keyring.IsLocked())

	h.clock.SetTime(testStart.Add(25 * time.Minute))
	require.Eventually(t, h.keyring.IsLocked, time.Second, 5*time.Millisecond)
}

func TestSetLockTimeout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	minutes, err := h.keyring.LockTimeout(ctx)
	require.NoError(t, err)
	require.Equal(t, 15, minutes)

	require.NoError(t, h.keyring.SetLockTimeout(ctx, 0))
	require.NoError(t, h.keyring.SetLockTimeout(ctx, 31))
	minutes, err = h.keyring.LockTimeout(ctx)
	require.NoError(t, err)
	require.Equal(t, 15, minutes)

	require.NoError(t, h.keyring.Unlock(ctx, testPassword))
	require.NoError(t, h.keyring.SetLockTimeout(ctx, 5))
	minutes, err = h.keyring.LockTimeout(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, minutes)

	h.clock.SetTime(testStart.Add(5 * time.Minute))
	require.Eventually(t, h.keyring.IsLocked, time.Second, 5*time.Millisecond)
}

func TestRevive(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	ok, err := h.keyring.Revive(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, h.keyring.Unlock(ctx, testPassword))
	want := addresses(h.keyring.Accounts())

	restarted := h.newKeyring()
	ok, err = restarted.Revive(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, restarted.IsLocked())
	require.Equal(t, want, addresses(restarted.Accounts()))

	// the revived keyring can still verify its password
	require.NoError(t, restarted.VerifyPassword(ctx, testPassword))

	require.NoError(t, restarted.Lock(ctx))
	ok, err = h.newKeyring().Revive(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t)

	events := h.keyring.Subscribe(ctx, TopicLockedStatus, TopicAccounts)

	require.NoError(t, h.keyring.Unlock(ctx, testPassword))
	require.Equal(t, false, <-events)

	_, err := h.keyring.DeriveNextAccount(ctx)
	require.NoError(t, err)
	infos := (<-events).([]model.AccountInfo)
	require.Len(t, infos, 2)
	require.Equal(t, TypeDerived, infos[1].Type)

	require.NoError(t, h.keyring.Lock(ctx))
	require.Equal(t, true, <-events)
}

func TestReseal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	newPassword := []byte("battery staple")

	err := h.keyring.Reseal(ctx, []byte("wrong"), newPassword)
	require.ErrorIs(t, err, model.ErrAuthentication)
	require.ErrorIs(t, h.keyring.Reseal(ctx, testPassword, nil), model.ErrValidation)

	require.NoError(t, h.keyring.Unlock(ctx, testPassword))
	want := addresses(h.keyring.Accounts())

	// a keyring configured with a higher cost migrates the vault
	cfg := DefaultConfig()
	cfg.Scrypt = crypto.WithN(1 << 5)
	migrating := New(cfg, h.durable, h.session, h.clock)
	require.NoError(t, migrating.Reseal(ctx, testPassword, newPassword))

	var file model.VaultFile
	ok, err := h.durable.Get(ctx, store.KeyVault, &file)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1<<5, file.ScryptN)

	require.ErrorIs(t, h.keyring.VerifyPassword(ctx, testPassword), model.ErrAuthentication)
	require.NoError(t, h.keyring.VerifyPassword(ctx, newPassword))

	restarted := h.newKeyring()
	require.NoError(t, restarted.Unlock(ctx, newPassword))
	require.Equal(t, want, addresses(restarted.Accounts()))
}

// lockingStore locks the keyring while the vault blob is being written.
type lockingStore struct {
	store.Store
	keyring *Keyring
	armed   bool
}

func (s *lockingStore) Set(ctx context.Context, key string, value any) error {
	if err := s.Store.Set(ctx, key, value); err != nil {
		return err
	}
	if s.armed && key == store.KeyVault {
		return s.keyring.Lock(ctx)
	}
	return nil
}

func TestImportRacingLock(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewTestClock(testStart)
	session := store.NewMemory()
	durable := &lockingStore{Store: store.NewMemory()}

	cfg := DefaultConfig()
	cfg.Scrypt = crypto.WithN(1 << 4)
	kr := New(cfg, durable, session, clk)
	durable.keyring = kr
	require.NoError(t, kr.CreateVault(ctx, testPassword, testEntropy))
	require.NoError(t, kr.Unlock(ctx, testPassword))

	secret := sha256.Sum256([]byte("imported while locking"))
	external, err := KeypairFromSecret(secret[:])
	require.NoError(t, err)

	durable.armed = true
	acc, err := kr.ImportAccountKeypair(ctx, external.Export(), testPassword)
	require.ErrorIs(t, err, model.ErrLocked)
	require.Nil(t, acc)
	require.True(t, kr.IsLocked())
	require.Empty(t, kr.Accounts())

	var sess sessionVault
	ok, err := session.Get(ctx, store.KeySessionVault, &sess)
	require.NoError(t, err)
	require.False(t, ok, "session vault must not outlive a lock")

	durable.armed = false
	ok, err = New(cfg, durable, session, clk).Revive(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}
