// Package txcodec encodes XDAG native transfers into their 16-field wire
// layout and produces the digest handed to the signer.
package txcodec

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AlexZinkM/xdaghub/internal/common"
	"github.com/AlexZinkM/xdaghub/internal/model"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Network selects the header constant family.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// ParseNetwork parses a network name.
func ParseNetwork(s string) (Network, error) {
	switch Network(strings.ToLower(strings.TrimSpace(s))) {
	case Mainnet, "":
		return Mainnet, nil
	case Testnet:
		return Testnet, nil
	default:
		return "", fmt.Errorf("%w: unknown network %q", model.ErrValidation, s)
	}
}

const (
	fieldCount   = 16
	fieldHexLen  = 64
	maxRemarkLen = 32

	// PublicKeyLen is the size of a compressed secp256k1 public key.
	PublicKeyLen = 33
	// SignatureLen is the size of a compact r||s signature.
	SignatureLen = 64
)

var zeroField = strings.Repeat("0", fieldHexLen)

// header constants by (network, remark present, even public key)
var headers = map[Network][2][2]string{
	//            no remark: {odd, even}                 remark: {odd, even}
	Mainnet: {{"e1dc570500000000", "e1dc560500000000"}, {"e1dc795500000000", "e1dc695500000000"}},
	Testnet: {{"e8dc570500000000", "e8dc560500000000"}, {"e8dc795500000000", "e8dc695500000000"}},
}

// ErrMissingField is returned when a required builder field is empty.
var ErrMissingField = fmt.Errorf("%w: missing transaction data", model.ErrValidation)

// Builder holds the data of one transfer. Time is captured on the first
// BuildPreimage call and reused afterwards.
type Builder struct {
	Sender    string
	Receiver  string
	Amount    string // display units, e.g. "1.5"
	Nonce     string // decimal
	Remark    string
	PublicKey []byte // compressed, 33 bytes
	Network   Network
	Time      time.Time

	canonical string // header..public key field, no padding
	preimage  string
	digest    []byte
}

// BuildPreimage returns the hex preimage that is hashed for signing.
func (b *Builder) BuildPreimage() (string, error) {
	if b.Sender == "" || b.Receiver == "" || b.Amount == "" || b.Nonce == "" || len(b.PublicKey) == 0 {
		return "", ErrMissingField
	}
	if len(b.PublicKey) != PublicKeyLen {
		return "", fmt.Errorf("%w: public key must be %d bytes", model.ErrValidation, PublicKeyLen)
	}

	from, err := addressField(b.Sender)
	if err != nil {
		return "", fmt.Errorf("failed to encode sender: %w", err)
	}
	to, err := addressField(b.Receiver)
	if err != nil {
		return "", fmt.Errorf("failed to encode receiver: %w", err)
	}
	amount, err := common.XDAGToNano(b.Amount)
	if err != nil {
		return "", fmt.Errorf("%w: invalid amount %q: %v", model.ErrValidation, b.Amount, err)
	}
	nonce, err := strconv.ParseUint(strings.TrimSpace(b.Nonce), 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: invalid nonce %q", model.ErrValidation, b.Nonce)
	}
	header, err := b.header()
	if err != nil {
		return "", err
	}
	if b.Time.IsZero() {
		b.Time = time.Now()
	}

	var sb strings.Builder

	// field 0: header
	sb.WriteString("0000000000000000")
	sb.WriteString(header)
	sb.WriteString(le64(XDAGTime(b.Time)))
	sb.WriteString("0000000000000000")

	// field 1: nonce
	sb.WriteString(strings.Repeat("0", 48))
	sb.WriteString(le64(nonce))

	// field 2: input
	sb.WriteString(hex.EncodeToString(from))
	sb.WriteString(le64(amount))

	// field 3: output
	sb.WriteString(hex.EncodeToString(to))
	sb.WriteString(le64(amount))

	// field 4: remark
	if remark := remarkBytes(b.Remark); remark != nil {
		sb.WriteString(hex.EncodeToString(remark))
	}

	// public key without its marker byte
	sb.WriteString(hex.EncodeToString(b.PublicKey[1:]))

	b.canonical = sb.String()

	used := len(b.canonical) / fieldHexLen
	sb.WriteString(strings.Repeat(zeroField, fieldCount-used))
	sb.WriteString(hex.EncodeToString(b.PublicKey))

	b.preimage = sb.String()
	b.digest = nil
	return b.preimage, nil
}

// Digest returns the double SHA-256 of the preimage bytes, building it if needed.
func (b *Builder) Digest() ([]byte, error) {
	if b.digest != nil {
		return b.digest, nil
	}
	if b.preimage == "" {
		if _, err := b.BuildPreimage(); err != nil {
			return nil, err
		}
	}
	raw, err := hex.DecodeString(b.preimage)
	if err != nil {
		return nil, fmt.Errorf("failed to decode preimage: %w", err)
	}
	b.digest = chainhash.DoubleHashB(raw)
	return b.digest, nil
}

// DigestHex is Digest encoded as hex.
func (b *Builder) DigestHex() (string, error) {
	d, err := b.Digest()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(d), nil
}

// Finalize appends the r and s halves of sig after the canonical fields and
// pads to 16 fields. BuildPreimage must have been called.
func (b *Builder) Finalize(sig []byte) (string, error) {
	if b.canonical == "" {
		return "", fmt.Errorf("%w: preimage not built", model.ErrState)
	}
	if len(sig) != SignatureLen {
		return "", fmt.Errorf("%w: signature must be %d bytes, got %d", model.ErrValidation, SignatureLen, len(sig))
	}

	var sb strings.Builder
	sb.WriteString(b.canonical)
	sb.WriteString(hex.EncodeToString(sig[:32]))
	sb.WriteString(hex.EncodeToString(sig[32:]))
	used := sb.Len() / fieldHexLen
	sb.WriteString(strings.Repeat(zeroField, fieldCount-used))
	return sb.String(), nil
}

func (b *Builder) header() (string, error) {
	network := b.Network
	if network == "" {
		network = Mainnet
	}
	set, ok := headers[network]
	if !ok {
		return "", fmt.Errorf("%w: unknown network %q", model.ErrValidation, network)
	}
	withRemark := 0
	if remarkBytes(b.Remark) != nil {
		withRemark = 1
	}
	even := 0
	if b.PublicKey[0]%2 == 0 {
		even = 1
	}
	return set[withRemark][even], nil
}

// remarkBytes returns the 32-byte remark slot, or nil when there is no remark.
func remarkBytes(remark string) []byte {
	if remark == "" {
		return nil
	}
	out := make([]byte, maxRemarkLen)
	copy(out, TruncateRemark(remark))
	return out
}

// TruncateRemark cuts remark to the 32-byte slot without splitting a rune.
func TruncateRemark(remark string) string {
	if len(remark) <= maxRemarkLen {
		return remark
	}
	cut := maxRemarkLen
	for cut > 0 && !utf8.RuneStart(remark[cut]) {
		cut--
	}
	return remark[:cut]
}

// XDAGTime converts wall time to the chain's 1/1024 s resolution.
func XDAGTime(t time.Time) uint64 {
	return uint64(t.UnixMilli()) * 1024 / 1000
}

func le64(v uint64) string {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return hex.EncodeToString(buf[:])
}
