package xdag

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/AlexZinkM/xdaghub/internal/keyring"
	"github.com/AlexZinkM/xdaghub/internal/model"

	"github.com/skip2/go-qrcode"
)

// CreateWallet initializes the vault, unlocks it and returns the first
// account with the QR code of its address.
// password must be []byte for security (caller should zero it after use)
func CreateWallet(ctx context.Context, kr *keyring.Keyring, password []byte, importedEntropy string) (*model.AccountQRResponse, error) {
	if err := kr.CreateVault(ctx, password, importedEntropy); err != nil {
		return nil, fmt.Errorf("failed to create vault: %w", err)
	}
	if err := kr.Unlock(ctx, password); err != nil {
		return nil, fmt.Errorf("failed to unlock new vault: %w", err)
	}
	acc, err := kr.ActiveAccount(ctx)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: new vault has no account", model.ErrState)
	}
	return AddressQR(acc.Address())
}

// AddressQR returns the address with its QR code as base64 PNG.
func AddressQR(address string) (*model.AccountQRResponse, error) {
	qr, err := generateQRCode(address)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	return &model.AccountQRResponse{Address: address, QR: qr}, nil
}

// generateQRCode generates QR code of address in base64
func generateQRCode(address string) (string, error) {
	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate PNG: %w", err)
	}

	return base64.StdEncoding.EncodeToString(png), nil
}
