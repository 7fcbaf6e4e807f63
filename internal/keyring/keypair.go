package keyring

import (
	"encoding/base64"
	"fmt"

	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/txcodec"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"
)

const (
	// SchemeSecp256k1 is the only key scheme the keyring holds.
	SchemeSecp256k1 = "Secp256k1"

	// XDAG coin type of the BIP-44 path.
	coinType = 586

	secretKeyLen = 32
	digestLen    = 32
)

// DerivationPath returns the BIP-44 path of the account at index.
func DerivationPath(index uint32) string {
	return fmt.Sprintf("m/44'/%d'/%d'/0/0", coinType, index)
}

// Keypair is a secp256k1 account key.
type Keypair struct {
	priv *btcec.PrivateKey
	pub  []byte // compressed
}

// KeypairFromSecret builds a keypair from a 32-byte secret.
func KeypairFromSecret(secret []byte) (*Keypair, error) {
	if len(secret) != secretKeyLen {
		return nil, fmt.Errorf("%w: secret key must be %d bytes", model.ErrValidation, secretKeyLen)
	}
	priv, pub := btcec.PrivKeyFromBytes(secret)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("%w: invalid secret key", model.ErrValidation)
	}
	return &Keypair{priv: priv, pub: pub.SerializeCompressed()}, nil
}

// KeypairFromExported parses the portable keypair form.
func KeypairFromExported(exp model.ExportedKeypair) (*Keypair, error) {
	if exp.Schema != SchemeSecp256k1 {
		return nil, fmt.Errorf("%w: unsupported key schema %q", model.ErrValidation, exp.Schema)
	}
	secret, err := base64.StdEncoding.DecodeString(exp.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: private key is not base64", model.ErrValidation)
	}
	defer clear(secret)
	return KeypairFromSecret(secret)
}

// MnemonicSeed turns vault entropy into the BIP-39 seed (empty passphrase).
func MnemonicSeed(entropy []byte) ([]byte, error) {
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid entropy: %v", model.ErrValidation, err)
	}
	return bip39.NewSeed(mnemonic, ""), nil
}

// DeriveKeypair derives m/44'/586'/index'/0/0 from a BIP-39 seed.
func DeriveKeypair(seed []byte, index uint32) (*Keypair, error) {
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}
	path := []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + coinType,
		hdkeychain.HardenedKeyStart + index,
		0,
		0,
	}
	key := master
	for _, child := range path {
		key, err = key.Derive(child)
		if err != nil {
			return nil, fmt.Errorf("failed to derive %s: %w", DerivationPath(index), err)
		}
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get private key: %w", err)
	}
	return &Keypair{priv: priv, pub: priv.PubKey().SerializeCompressed()}, nil
}

// PublicKey returns the 33-byte compressed public key.
func (k *Keypair) PublicKey() []byte {
	return append([]byte(nil), k.pub...)
}

// Address returns the XDAG address of the key.
func (k *Keypair) Address() string {
	return txcodec.AddressFromPubKey(k.pub)
}

// SignDigest signs a 32-byte digest (RFC 6979, low S) and returns r||s.
func (k *Keypair) SignDigest(digest []byte) ([]byte, error) {
	if len(digest) != digestLen {
		return nil, fmt.Errorf("%w: digest must be %d bytes, got %d", model.ErrValidation, digestLen, len(digest))
	}
	compact := ecdsa.SignCompact(k.priv, digest, true)
	return compact[1:], nil
}

// Export returns the portable form of the key.
func (k *Keypair) Export() model.ExportedKeypair {
	secret := k.priv.Serialize()
	defer clear(secret)
	return model.ExportedKeypair{
		Schema:     SchemeSecp256k1,
		PrivateKey: base64.StdEncoding.EncodeToString(secret),
	}
}

// Zero wipes the private scalar.
func (k *Keypair) Zero() {
	k.priv.Zero()
}
