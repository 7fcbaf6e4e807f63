package txcodec

import (
	"bytes"
	"fmt"

	"github.com/AlexZinkM/xdaghub/internal/model"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	hash160Len  = 20
	checksumLen = 4

	// addressFieldLen is the size of the address part of an input/output field.
	addressFieldLen = 24
)

// AddressFromPubKey returns the XDAG address of a compressed secp256k1 key:
// base58 of hash160 followed by the first 4 bytes of its double SHA-256.
func AddressFromPubKey(pubKey []byte) string {
	return encodeAddress(btcutil.Hash160(pubKey))
}

func encodeAddress(h160 []byte) string {
	sum := chainhash.DoubleHashB(h160)
	buf := make([]byte, 0, hash160Len+checksumLen)
	buf = append(buf, h160...)
	buf = append(buf, sum[:checksumLen]...)
	return base58.Encode(buf)
}

// DecodeAddress validates an address and returns its hash160.
func DecodeAddress(addr string) ([]byte, error) {
	raw := base58.Decode(addr)
	if len(raw) != hash160Len+checksumLen {
		return nil, fmt.Errorf("%w: invalid address %q", model.ErrValidation, addr)
	}
	h160, sum := raw[:hash160Len], raw[hash160Len:]
	if !bytes.Equal(chainhash.DoubleHashB(h160)[:checksumLen], sum) {
		return nil, fmt.Errorf("%w: bad checksum in address %q", model.ErrValidation, addr)
	}
	return h160, nil
}

// IsValidAddress reports whether addr is a well-formed XDAG address.
func IsValidAddress(addr string) bool {
	_, err := DecodeAddress(addr)
	return err == nil
}

// addressField lays the hash160 out in the 24-byte address slot.
func addressField(addr string) ([]byte, error) {
	h160, err := DecodeAddress(addr)
	if err != nil {
		return nil, err
	}
	field := make([]byte, addressFieldLen)
	copy(field, h160)
	return field, nil
}
