package keyring

import (
	"encoding/base64"
	"fmt"

	"github.com/AlexZinkM/xdaghub/internal/model"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// SignatureFlag is the first byte of a serialized signature.
type SignatureFlag byte

const (
	FlagED25519   SignatureFlag = 0x00
	FlagSecp256k1 SignatureFlag = 0x01
	FlagSecp256r1 SignatureFlag = 0x02
	FlagMultiSig  SignatureFlag = 0x03
)

func (f SignatureFlag) String() string {
	switch f {
	case FlagED25519:
		return "ED25519"
	case FlagSecp256k1:
		return SchemeSecp256k1
	case FlagSecp256r1:
		return "Secp256r1"
	case FlagMultiSig:
		return "MultiSig"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(f))
	}
}

// sizes of signature and public key per scheme
var schemeSizes = map[SignatureFlag][2]int{
	FlagED25519:   {64, 32},
	FlagSecp256k1: {64, 33},
	FlagSecp256r1: {64, 33},
}

// ParsedSignature is a decoded serialized signature.
type ParsedSignature struct {
	Flag      SignatureFlag
	Signature []byte
	PublicKey []byte
}

// SerializeSignature encodes flag || signature || public key as base64.
func SerializeSignature(flag SignatureFlag, sig, pub []byte) string {
	buf := make([]byte, 0, 1+len(sig)+len(pub))
	buf = append(buf, byte(flag))
	buf = append(buf, sig...)
	buf = append(buf, pub...)
	return base64.StdEncoding.EncodeToString(buf)
}

// ParseSignature decodes a serialized signature. Multisig signatures are
// recognized but not supported.
func ParseSignature(serialized string) (*ParsedSignature, error) {
	raw, err := base64.StdEncoding.DecodeString(serialized)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not base64", model.ErrValidation)
	}
	if len(raw) < 1 {
		return nil, fmt.Errorf("%w: signature is empty", model.ErrValidation)
	}
	flag := SignatureFlag(raw[0])
	if flag == FlagMultiSig {
		return nil, fmt.Errorf("%w: multisig signatures are not supported", model.ErrValidation)
	}
	sizes, ok := schemeSizes[flag]
	if !ok {
		return nil, fmt.Errorf("%w: unknown signature scheme flag 0x%02x", model.ErrValidation, raw[0])
	}
	if len(raw) != 1+sizes[0]+sizes[1] {
		return nil, fmt.Errorf("%w: %s signature has wrong length %d", model.ErrValidation, flag, len(raw))
	}
	return &ParsedSignature{
		Flag:      flag,
		Signature: raw[1 : 1+sizes[0]],
		PublicKey: raw[1+sizes[0]:],
	}, nil
}

// VerifyDigest checks a secp256k1 serialized signature over a 32-byte digest.
func VerifyDigest(serialized string, digest []byte) (bool, error) {
	parsed, err := ParseSignature(serialized)
	if err != nil {
		return false, err
	}
	if parsed.Flag != FlagSecp256k1 {
		return false, fmt.Errorf("%w: cannot verify %s signatures", model.ErrValidation, parsed.Flag)
	}
	pub, err := btcec.ParsePubKey(parsed.PublicKey)
	if err != nil {
		return false, fmt.Errorf("%w: invalid public key: %v", model.ErrValidation, err)
	}
	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(parsed.Signature[:32]); overflow {
		return false, nil
	}
	if overflow := s.SetByteSlice(parsed.Signature[32:]); overflow {
		return false, nil
	}
	return ecdsa.NewSignature(&r, &s).Verify(digest, pub), nil
}
