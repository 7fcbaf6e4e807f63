// Package keyring holds the encrypted vault, the unlocked account table and
// the auto-lock timer.
package keyring

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/AlexZinkM/xdaghub/internal/crypto"
	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/store"

	"github.com/filecoin-project/pubsub"
	logging "github.com/ipfs/go-log/v2"
	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/time/rate"
)

var log = logging.Logger("keyring")

// ErrDuplicateAccount is returned when an imported key is already held.
var ErrDuplicateAccount = fmt.Errorf("%w: duplicate account not imported", model.ErrState)

// Config holds the keyring knobs.
type Config struct {
	// AutoLock bounds and default, in minutes.
	AutoLockMin     int
	AutoLockMax     int
	AutoLockDefault int

	// Scrypt cost used when sealing the vault.
	Scrypt crypto.Params
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		AutoLockMin:     1,
		AutoLockMax:     30,
		AutoLockDefault: 15,
		Scrypt:          crypto.DefaultParams(),
	}
}

// Keyring is the key custody service. It is safe for concurrent use.
type Keyring struct {
	cfg      Config
	store    store.Store
	vault    *vaultStorage
	clock    clock.Clock
	alarm    *lockAlarm
	postpone *rate.Limiter
	events   *pubsub.PubSub

	mu       sync.RWMutex
	locked   bool
	main     string
	accounts map[string]Account
	order    []string
}

// New creates a locked keyring. session is a memory-only store that lets a
// restarted keyring come back unlocked, see Revive.
func New(cfg Config, durable, session store.Store, clk clock.Clock) *Keyring {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	k := &Keyring{
		cfg:      cfg,
		store:    durable,
		vault:    newVaultStorage(durable, session, cfg.Scrypt),
		clock:    clk,
		postpone: rate.NewLimiter(rate.Every(time.Second), 1),
		events:   newEventBus(),
		locked:   true,
		accounts: make(map[string]Account),
	}
	k.alarm = newLockAlarm(clk, func() {
		log.Info("auto-lock timer fired")
		if err := k.Lock(context.Background()); err != nil {
			log.Errorw("failed to auto-lock", "error", err)
		}
	})
	return k
}

// CreateVault initializes encrypted storage. It does not unlock.
func (k *Keyring) CreateVault(ctx context.Context, password []byte, importedEntropy string) error {
	if err := k.vault.create(ctx, password, importedEntropy); err != nil {
		return err
	}
	log.Info("vault created")
	return nil
}

// Unlock decrypts the vault and populates the account table.
func (k *Keyring) Unlock(ctx context.Context, password []byte) error {
	if err := k.vault.unlock(ctx, password); err != nil {
		return err
	}
	return k.unlocked(ctx)
}

// Reseal re-encrypts the vault under newPassword using the configured scrypt
// cost. It also migrates vaults sealed with a different cost. An unlocked
// keyring stays unlocked.
func (k *Keyring) Reseal(ctx context.Context, password, newPassword []byte) error {
	if len(newPassword) == 0 {
		return fmt.Errorf("%w: new password is empty", model.ErrValidation)
	}
	if err := k.vault.reseal(ctx, password, newPassword); err != nil {
		return err
	}
	log.Infow("vault resealed", "scryptN", k.cfg.Scrypt.N)
	return nil
}

// Revive unlocks from the session store when it still holds the vault.
func (k *Keyring) Revive(ctx context.Context) (bool, error) {
	ok, err := k.vault.revive(ctx)
	if err != nil || !ok {
		return false, err
	}
	if err := k.unlocked(ctx); err != nil {
		return false, err
	}
	log.Info("keyring revived from session")
	return true, nil
}

func (k *Keyring) unlocked(ctx context.Context) error {
	entropy := k.vault.entropy()
	if entropy == nil {
		return fmt.Errorf("%w: vault holds no seed", model.ErrState)
	}
	seed, err := MnemonicSeed(entropy)
	if err != nil {
		crypto.Wipe(entropy)
		return err
	}
	defer crypto.Wipe(entropy, seed)

	last, err := k.lastDerivedIndex(ctx)
	if err != nil {
		return err
	}

	accounts := make(map[string]Account, last+1)
	var order []string
	var main string
	for i := uint32(0); i <= last; i++ {
		acc, err := deriveAccount(seed, i)
		if err != nil {
			return err
		}
		accounts[acc.Address()] = acc
		order = append(order, acc.Address())
		if i == 0 {
			main = acc.Address()
		}
	}

	for _, exp := range k.vault.importedKeys() {
		kp, err := KeypairFromExported(exp)
		if err != nil {
			log.Warnw("skipping unreadable imported key", "error", err)
			continue
		}
		acc := &ImportedAccount{keypair: kp}
		// an imported key that the seed also derives stays a derived account
		if _, ok := accounts[acc.Address()]; ok {
			continue
		}
		accounts[acc.Address()] = acc
		order = append(order, acc.Address())
	}

	k.mu.Lock()
	k.accounts = accounts
	k.order = order
	k.main = main
	k.locked = false
	k.mu.Unlock()

	if err := k.armAlarm(ctx); err != nil {
		return err
	}
	log.Infow("keyring unlocked", "accounts", len(order))
	k.events.Pub(false, TopicLockedStatus)
	return nil
}

// Lock clears the account table and disarms auto-lock. It is idempotent.
func (k *Keyring) Lock(ctx context.Context) error {
	k.mu.Lock()
	for _, acc := range k.accounts {
		acc.Keypair().Zero()
	}
	k.accounts = make(map[string]Account)
	k.order = nil
	k.main = ""
	k.locked = true
	k.mu.Unlock()

	k.alarm.clear()
	if err := k.vault.lock(ctx); err != nil {
		return err
	}
	k.events.Pub(true, TopicLockedStatus)
	return nil
}

// ClearVault locks and deletes the vault.
func (k *Keyring) ClearVault(ctx context.Context) error {
	if err := k.Lock(ctx); err != nil {
		return err
	}
	return k.vault.clear(ctx)
}

// IsWalletInitialized reports whether a vault exists.
func (k *Keyring) IsWalletInitialized(ctx context.Context) (bool, error) {
	return k.vault.isInitialized(ctx)
}

// IsLocked reports the lock state.
func (k *Keyring) IsLocked() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.locked
}

// VerifyPassword returns model.ErrAuthentication on a wrong password.
func (k *Keyring) VerifyPassword(ctx context.Context, password []byte) error {
	return k.vault.verifyPassword(ctx, password)
}

// Accounts returns the account table in derivation order followed by
// imported accounts, or nil while locked.
func (k *Keyring) Accounts() []Account {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.accountsLocked()
}

func (k *Keyring) accountsLocked() []Account {
	if k.locked {
		return nil
	}
	out := make([]Account, 0, len(k.order))
	for _, addr := range k.order {
		out = append(out, k.accounts[addr])
	}
	return out
}

// Account looks up an unlocked account.
func (k *Keyring) Account(address string) (Account, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.locked {
		return nil, model.ErrLocked
	}
	acc, ok := k.accounts[address]
	if !ok {
		return nil, fmt.Errorf("%w: account for address %s not found in keyring", model.ErrNotFound, address)
	}
	return acc, nil
}

// ActiveAccount returns the persisted active account, falling back to the
// first derived one. It returns nil while locked.
func (k *Keyring) ActiveAccount(ctx context.Context) (Account, error) {
	if k.IsLocked() {
		return nil, nil
	}
	var addr string
	if _, err := k.store.Get(ctx, store.KeyActiveAccount, &addr); err != nil {
		return nil, err
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	if acc, ok := k.accounts[addr]; ok {
		return acc, nil
	}
	if acc, ok := k.accounts[k.main]; ok {
		return acc, nil
	}
	return nil, nil
}

// ChangeActiveAccount persists address as active when unlocked and known.
func (k *Keyring) ChangeActiveAccount(ctx context.Context, address string) (bool, error) {
	k.mu.RLock()
	_, ok := k.accounts[address]
	ok = ok && !k.locked
	k.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := k.store.Set(ctx, store.KeyActiveAccount, address); err != nil {
		return false, err
	}
	k.events.Pub(address, TopicActiveAccount)
	return true, nil
}

// DeriveNextAccount derives and stores the account after the last derived
// index. It returns nil while locked.
func (k *Keyring) DeriveNextAccount(ctx context.Context) (Account, error) {
	if k.IsLocked() {
		return nil, nil
	}
	entropy := k.vault.entropy()
	if entropy == nil {
		return nil, nil
	}
	defer clear(entropy)
	seed, err := MnemonicSeed(entropy)
	if err != nil {
		return nil, err
	}
	defer clear(seed)

	last, err := k.lastDerivedIndex(ctx)
	if err != nil {
		return nil, err
	}
	next := last + 1
	if err := k.store.Set(ctx, store.KeyLastAccountIndex, next); err != nil {
		return nil, err
	}
	acc, err := deriveAccount(seed, next)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	if k.locked {
		k.mu.Unlock()
		return nil, nil
	}
	if _, exists := k.accounts[acc.Address()]; !exists {
		k.order = append(k.order, acc.Address())
	}
	k.accounts[acc.Address()] = acc
	infos := infosOf(k.accountsLocked())
	k.mu.Unlock()

	log.Infow("derived account", "index", next, "address", acc.Address())
	k.events.Pub(infos, TopicAccounts)
	return acc, nil
}

// ExportAccountKeypair returns the keypair of address after re-checking the
// password. It returns nil when locked or the address is unknown.
func (k *Keyring) ExportAccountKeypair(ctx context.Context, address string, password []byte) (*model.ExportedKeypair, error) {
	if k.IsLocked() {
		return nil, nil
	}
	if err := k.vault.verifyPassword(ctx, password); err != nil {
		return nil, err
	}
	k.mu.RLock()
	acc, ok := k.accounts[address]
	k.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	exp := acc.Keypair().Export()
	return &exp, nil
}

// ImportAccountKeypair adds an external key. It fails with ErrDuplicateAccount
// when the key is already in the keyring and with model.ErrLocked when the
// keyring locks while the import is in flight.
func (k *Keyring) ImportAccountKeypair(ctx context.Context, exp model.ExportedKeypair, password []byte) (Account, error) {
	current := k.Accounts()
	if current == nil {
		return nil, fmt.Errorf("wallet is locked: %w", model.ErrLocked)
	}
	if err := k.vault.verifyPassword(ctx, password); err != nil {
		return nil, err
	}
	kp, err := KeypairFromExported(exp)
	if err != nil {
		return nil, err
	}
	added, err := k.vault.importKeypair(ctx, kp, password, current)
	if err != nil {
		return nil, err
	}
	if added == nil {
		return nil, fmt.Errorf("failed to import account %s: %w", kp.Address(), ErrDuplicateAccount)
	}

	acc := &ImportedAccount{keypair: added}
	k.mu.Lock()
	if k.locked {
		k.mu.Unlock()
		return nil, fmt.Errorf("keyring locked during import: %w", model.ErrLocked)
	}
	if _, exists := k.accounts[acc.Address()]; !exists {
		k.accounts[acc.Address()] = acc
		k.order = append(k.order, acc.Address())
	}
	infos := infosOf(k.accountsLocked())
	k.mu.Unlock()

	log.Infow("imported account", "address", acc.Address())
	k.events.Pub(infos, TopicAccounts)
	return acc, nil
}

// Entropy returns the hex vault entropy.
func (k *Keyring) Entropy() (string, error) {
	if k.IsLocked() {
		return "", fmt.Errorf("keyring is locked: %w", model.ErrLocked)
	}
	entropy := k.vault.entropy()
	if entropy == nil {
		return "", fmt.Errorf("%w: vault is empty", model.ErrState)
	}
	defer clear(entropy)
	return hex.EncodeToString(entropy), nil
}

// SignData signs a hex-encoded 32-byte digest with the key of address and
// returns the serialized signature.
func (k *Keyring) SignData(ctx context.Context, address, digestHex string) (string, error) {
	acc, err := k.Account(address)
	if err != nil {
		return "", err
	}
	digest, err := hex.DecodeString(digestHex)
	if err != nil {
		return "", fmt.Errorf("%w: digest is not hex", model.ErrValidation)
	}
	sig, err := acc.Keypair().SignDigest(digest)
	if err != nil {
		return "", err
	}
	return SerializeSignature(FlagSecp256k1, sig, acc.PublicKey()), nil
}

// PostponeLock re-arms the auto-lock timer, at most once per second.
func (k *Keyring) PostponeLock(ctx context.Context) error {
	if !k.postpone.AllowN(k.clock.Now(), 1) {
		return nil
	}
	if k.IsLocked() {
		return nil
	}
	return k.armAlarm(ctx)
}

// SetLockTimeout stores a new auto-lock timeout. Values outside the
// configured bounds are ignored.
func (k *Keyring) SetLockTimeout(ctx context.Context, minutes int) error {
	if minutes < k.cfg.AutoLockMin || minutes > k.cfg.AutoLockMax {
		log.Debugw("ignoring out of range lock timeout", "minutes", minutes)
		return nil
	}
	if err := k.store.Set(ctx, store.KeyAutoLockMinutes, minutes); err != nil {
		return err
	}
	if !k.IsLocked() {
		return k.armAlarm(ctx)
	}
	return nil
}

// LockTimeout returns the auto-lock timeout in minutes.
func (k *Keyring) LockTimeout(ctx context.Context) (int, error) {
	minutes := k.cfg.AutoLockDefault
	if _, err := k.store.Get(ctx, store.KeyAutoLockMinutes, &minutes); err != nil {
		return 0, err
	}
	return minutes, nil
}

func (k *Keyring) armAlarm(ctx context.Context) error {
	minutes, err := k.LockTimeout(ctx)
	if err != nil {
		return err
	}
	k.alarm.set(time.Duration(minutes) * time.Minute)
	return nil
}

func (k *Keyring) lastDerivedIndex(ctx context.Context) (uint32, error) {
	var idx uint32
	if _, err := k.store.Get(ctx, store.KeyLastAccountIndex, &idx); err != nil {
		return 0, err
	}
	return idx, nil
}

func deriveAccount(seed []byte, index uint32) (*DerivedAccount, error) {
	kp, err := DeriveKeypair(seed, index)
	if err != nil {
		return nil, err
	}
	return &DerivedAccount{Index: index, DerivationPath: DerivationPath(index), keypair: kp}, nil
}

func infosOf(accounts []Account) []model.AccountInfo {
	out := make([]model.AccountInfo, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, Info(a))
	}
	return out
}

