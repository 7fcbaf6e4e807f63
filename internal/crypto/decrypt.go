package crypto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/AlexZinkM/xdaghub/internal/model"
)

// OpenVault decrypts a vault envelope
// password must be []byte for security (caller should zero it after use)
func OpenVault(file *model.VaultFile, password []byte) (*model.VaultData, error) {
	if file == nil {
		return nil, fmt.Errorf("%w: vault is not initialized", model.ErrState)
	}
	if file.Version != EnvelopeVersion {
		return nil, fmt.Errorf("%w: unsupported vault version %d", model.ErrValidation, file.Version)
	}

	// Decode salt and nonce
	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}

	nonce, err := base64.StdEncoding.DecodeString(file.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(file.CipherText)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	aesGCM, err := newGCM(password, salt, Params{N: file.ScryptN, R: file.ScryptR, P: file.ScryptP})
	if err != nil {
		return nil, err
	}

	// Decrypt
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid password: %w", model.ErrAuthentication)
	}
	defer clear(plaintext) // wipe decrypted bytes from memory

	// Deserialize vault data
	var data model.VaultData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vault data: %w", err)
	}

	return &data, nil
}
