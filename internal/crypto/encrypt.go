package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/AlexZinkM/xdaghub/internal/model"

	"golang.org/x/crypto/scrypt"
)

const (
	// EnvelopeVersion is written into every sealed vault.
	EnvelopeVersion = 1

	// scrypt parameters for the vault
	// Security is prioritized over performance
	//
	// N=2^18 (~256MB RAM, 0.5-2s) is the default. Tests and constrained hosts
	// may lower it through Params; the value used is stored in the envelope
	// so a vault always opens with the parameters it was sealed with.
	DefaultScryptN = 1 << 18
	scryptR        = 8
	scryptP        = 1
	scryptKeyLen   = 32
	saltLen        = 32
	nonceLen       = 12
)

// Params selects the scrypt cost used when sealing.
type Params struct {
	N int
	R int
	P int
}

// DefaultParams returns the production scrypt parameters.
func DefaultParams() Params {
	return Params{N: DefaultScryptN, R: scryptR, P: scryptP}
}

// WithN returns the default parameters with a custom N (must be a power of two > 1).
func WithN(n int) Params {
	p := DefaultParams()
	if n > 1 {
		p.N = n
	}
	return p
}

// SealVault encrypts vault data into a versioned envelope
// password must be []byte for security (caller should zero it after use)
func SealVault(data *model.VaultData, password []byte, params Params) (*model.VaultFile, error) {
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: password cannot be empty", model.ErrValidation)
	}

	// Generate salt and nonce
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	aesGCM, err := newGCM(password, salt, params)
	if err != nil {
		return nil, err
	}

	// Serialize vault data
	plaintext, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vault data: %w", err)
	}
	defer clear(plaintext) // wipe plaintext bytes from memory

	ciphertext := aesGCM.Seal(nil, nonce, plaintext, nil)

	return &model.VaultFile{
		Version:    EnvelopeVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		ScryptN:    params.N,
		ScryptR:    params.R,
		ScryptP:    params.P,
		CipherText: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

func newGCM(password, salt []byte, params Params) (cipher.AEAD, error) {
	// Derive key from password
	key, err := scrypt.Key(password, salt, params.N, params.R, params.P, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	// Create AES cipher
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	// Create GCM
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}

// Wipe zeroes every given buffer in place.
func Wipe(bufs ...[]byte) {
	for _, b := range bufs {
		clear(b)
	}
}
