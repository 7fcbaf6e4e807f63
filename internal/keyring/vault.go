package keyring

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/AlexZinkM/xdaghub/internal/crypto"
	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/store"
)

const (
	minEntropyLen     = 16
	maxEntropyLen     = 32
	defaultEntropyLen = 16
)

// sessionVault is what survives a restart of the keyring while the session
// store lives: the decrypted vault and its password.
type sessionVault struct {
	Password []byte          `json:"password"`
	Data     model.VaultData `json:"data"`
}

// vaultStorage owns the encrypted vault blob and the decrypted copy.
type vaultStorage struct {
	store   store.Store
	session store.Store
	params  crypto.Params

	mu       sync.Mutex
	password []byte
	data     *model.VaultData
}

func newVaultStorage(durable, session store.Store, params crypto.Params) *vaultStorage {
	return &vaultStorage{store: durable, session: session, params: params}
}

// ParseEntropy decodes hex entropy for a new vault.
func ParseEntropy(s string) ([]byte, error) {
	entropy, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: entropy is not hex", model.ErrValidation)
	}
	if len(entropy) < minEntropyLen || len(entropy) > maxEntropyLen || len(entropy)%4 != 0 {
		return nil, fmt.Errorf("%w: entropy must be 16 to 32 bytes in steps of 4, got %d", model.ErrValidation, len(entropy))
	}
	return entropy, nil
}

func (v *vaultStorage) create(ctx context.Context, password []byte, importedEntropy string) error {
	if ok, err := v.isInitialized(ctx); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: wallet already exists", model.ErrState)
	}

	var entropy []byte
	if importedEntropy != "" {
		var err error
		if entropy, err = ParseEntropy(importedEntropy); err != nil {
			return err
		}
	} else {
		entropy = make([]byte, defaultEntropyLen)
		if _, err := io.ReadFull(rand.Reader, entropy); err != nil {
			return fmt.Errorf("failed to generate entropy: %w", err)
		}
	}
	defer clear(entropy)

	data := &model.VaultData{
		Entropy:   entropy,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	file, err := crypto.SealVault(data, password, v.params)
	if err != nil {
		return fmt.Errorf("failed to encrypt vault: %w", err)
	}
	return v.store.Set(ctx, store.KeyVault, file)
}

func (v *vaultStorage) isInitialized(ctx context.Context) (bool, error) {
	var file model.VaultFile
	return v.store.Get(ctx, store.KeyVault, &file)
}

func (v *vaultStorage) open(ctx context.Context, password []byte) (*model.VaultData, error) {
	var file model.VaultFile
	ok, err := v.store.Get(ctx, store.KeyVault, &file)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: wallet is not initialized", model.ErrState)
	}
	return crypto.OpenVault(&file, password)
}

func (v *vaultStorage) unlock(ctx context.Context, password []byte) error {
	data, err := v.open(ctx, password)
	if err != nil {
		return err
	}
	v.set(password, data)
	return v.session.Set(ctx, store.KeySessionVault, sessionVault{Password: password, Data: *data})
}

// revive restores the decrypted vault from the session store.
func (v *vaultStorage) revive(ctx context.Context) (bool, error) {
	var sess sessionVault
	ok, err := v.session.Get(ctx, store.KeySessionVault, &sess)
	if err != nil || !ok {
		return false, err
	}
	if ok, err := v.isInitialized(ctx); err != nil || !ok {
		return false, err
	}
	v.set(sess.Password, &sess.Data)
	clear(sess.Password)
	return true, nil
}

func (v *vaultStorage) set(password []byte, data *model.VaultData) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.wipeLocked()
	v.password = append([]byte(nil), password...)
	v.data = data
}

func (v *vaultStorage) lock(ctx context.Context) error {
	v.mu.Lock()
	v.wipeLocked()
	v.mu.Unlock()
	return v.session.Delete(ctx, store.KeySessionVault)
}

func (v *vaultStorage) wipeLocked() {
	clear(v.password)
	v.password = nil
	if v.data != nil {
		clear(v.data.Entropy)
		v.data = nil
	}
}

func (v *vaultStorage) clear(ctx context.Context) error {
	if err := v.lock(ctx); err != nil {
		return err
	}
	return v.store.Delete(ctx, store.KeyVault)
}

// verifyPassword checks password against the durable vault.
func (v *vaultStorage) verifyPassword(ctx context.Context, password []byte) error {
	_, err := v.open(ctx, password)
	return err
}

func (v *vaultStorage) entropy() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.data == nil || len(v.data.Entropy) == 0 {
		return nil
	}
	return append([]byte(nil), v.data.Entropy...)
}

func (v *vaultStorage) importedKeys() []model.ExportedKeypair {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.data == nil {
		return nil
	}
	return append([]model.ExportedKeypair(nil), v.data.ImportedKeypairs...)
}

// importKeypair adds keypair to the vault unless its secret is already
// present among existing. It returns nil when nothing was added.
func (v *vaultStorage) importKeypair(ctx context.Context, kp *Keypair, password []byte, existing []Account) (*Keypair, error) {
	secret := kp.priv.Serialize()
	defer clear(secret)
	for _, acc := range existing {
		other := acc.Keypair().priv.Serialize()
		dup := bytes.Equal(other, secret)
		clear(other)
		if dup {
			return nil, nil
		}
	}

	v.mu.Lock()
	if v.data == nil {
		v.mu.Unlock()
		return nil, model.ErrLocked
	}
	updated := *v.data
	updated.Entropy = append([]byte(nil), v.data.Entropy...)
	updated.ImportedKeypairs = append(append([]model.ExportedKeypair(nil), v.data.ImportedKeypairs...), kp.Export())
	v.mu.Unlock()

	file, err := crypto.SealVault(&updated, password, v.params)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt vault: %w", err)
	}
	if err := v.store.Set(ctx, store.KeyVault, file); err != nil {
		return nil, err
	}
	if err := v.commitUnlocked(ctx, password, &updated); err != nil {
		return nil, err
	}
	return kp, nil
}

// commitUnlocked replaces the decrypted vault and its session copy unless the
// vault was locked in the meantime. The session write happens under mu.
func (v *vaultStorage) commitUnlocked(ctx context.Context, password []byte, data *model.VaultData) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.data == nil {
		return fmt.Errorf("vault locked during update: %w", model.ErrLocked)
	}
	v.wipeLocked()
	v.password = append([]byte(nil), password...)
	v.data = data
	return v.session.Set(ctx, store.KeySessionVault, sessionVault{Password: password, Data: *data})
}

// reseal decrypts the durable vault with password and seals it again under
// newPassword with the current scrypt parameters.
func (v *vaultStorage) reseal(ctx context.Context, password, newPassword []byte) error {
	data, err := v.open(ctx, password)
	if err != nil {
		return err
	}
	defer clear(data.Entropy)

	file, err := crypto.SealVault(data, newPassword, v.params)
	if err != nil {
		return fmt.Errorf("failed to encrypt vault: %w", err)
	}
	if err := v.store.Set(ctx, store.KeyVault, file); err != nil {
		return err
	}

	v.mu.Lock()
	unlocked := v.data != nil
	v.mu.Unlock()
	if !unlocked {
		return nil
	}
	kept := *data
	kept.Entropy = append([]byte(nil), data.Entropy...)
	if err := v.commitUnlocked(ctx, newPassword, &kept); err != nil {
		clear(kept.Entropy)
		if !errors.Is(err, model.ErrLocked) {
			return err
		}
	}
	return nil
}
