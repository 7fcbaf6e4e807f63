// Package chunk splits payloads into remark-sized tagged fragments and
// reassembles them from chain history.
package chunk

import (
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/AlexZinkM/xdaghub/internal/model"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/crypto/blake2b"
)

var log = logging.Logger("chunk")

const (
	// FragmentSize is the payload slice carried per fragment.
	FragmentSize = 28
	// TagLen is the length of a group tag and of a position tag.
	TagLen = 2

	trailerMarker  = "~~#$#"
	fingerprintLen = 6

	// UnitGas is the per-transaction fee unit, 0.1 XDAG in nano-XDAG.
	UnitGas uint64 = 100_000_000
)

// Encoded is a fragment sequence plus its cost metrics, all in nano-XDAG.
type Encoded struct {
	Chunks       []string
	EstimateGas  uint64
	Award        uint64
	SingleTxCost uint64
	TotalCost    uint64
}

// Encode splits payload into tagged fragments followed by a trailer.
func Encode(groupTag, payload string, awardRatio float64) (*Encoded, error) {
	if len(groupTag) != TagLen {
		return nil, fmt.Errorf("%w: group tag must be %d characters, got %q", model.ErrValidation, TagLen, groupTag)
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: payload is empty", model.ErrValidation)
	}
	// fragments are cut by byte offset and must land inside 32-byte remarks
	if !isASCII(groupTag) || !isASCII(payload) {
		return nil, fmt.Errorf("%w: group tag and payload must be ASCII", model.ErrValidation)
	}
	if awardRatio < 0 || math.IsNaN(awardRatio) || math.IsInf(awardRatio, 0) {
		return nil, fmt.Errorf("%w: invalid award ratio %v", model.ErrValidation, awardRatio)
	}
	slices := (len(payload) + FragmentSize - 1) / FragmentSize
	if slices > MaxFragments {
		return nil, fmt.Errorf("%w: payload needs %d fragments, limit is %d", model.ErrValidation, slices, MaxFragments)
	}

	chunks := make([]string, 0, slices+1)
	counter := NewCounter()
	for i := 0; i < len(payload); i += FragmentSize {
		end := min(i+FragmentSize, len(payload))
		chunks = append(chunks, groupTag+counter.String()+payload[i:end])
		counter.Next()
	}
	chunks = append(chunks, trailer(groupTag, slices, payload))

	n := uint64(len(chunks))
	gas := n * UnitGas
	award := uint64(math.Ceil(float64(n)*awardRatio)) * UnitGas
	single := ceilDiv(award+gas, n*UnitGas) * UnitGas

	return &Encoded{
		Chunks:       chunks,
		EstimateGas:  gas,
		Award:        award,
		SingleTxCost: single,
		TotalCost:    single * n,
	}, nil
}

// Decode reassembles a payload from the fragments of one group. It returns
// false when the fragments do not form a complete, intact group.
func Decode(groupTag string, fragments []string) (string, bool) {
	if len(groupTag) != TagLen || len(fragments) < 2 {
		return "", false
	}
	sorted := append([]string(nil), fragments...)
	sort.Strings(sorted)

	count, fingerprint, ok := parseTrailer(groupTag, sorted[len(sorted)-1])
	if !ok || count != len(sorted)-1 {
		return "", false
	}
	data := sorted[:len(sorted)-1]

	var sb strings.Builder
	counter := NewCounter()
	for i, frag := range data {
		prefix := groupTag + counter.String()
		if !strings.HasPrefix(frag, prefix) {
			return "", false
		}
		sb.WriteString(frag[len(prefix):])
		if i < len(data)-1 && !counter.Next() {
			return "", false
		}
	}

	payload := sb.String()
	if payload == "" || Fingerprint(payload) != fingerprint {
		return "", false
	}
	return payload, true
}

// Fingerprint returns the last 6 hex characters of the BLAKE2b-256 of payload.
func Fingerprint(payload string) string {
	sum := blake2b.Sum256([]byte(payload))
	h := hex.EncodeToString(sum[:])
	return h[len(h)-fingerprintLen:]
}

// IsTrailer reports whether frag is a well-formed trailer of groupTag.
func IsTrailer(groupTag, frag string) bool {
	_, _, ok := parseTrailer(groupTag, frag)
	return ok
}

func trailer(groupTag string, count int, payload string) string {
	return groupTag + trailerMarker + strconv.Itoa(count) + "#" + Fingerprint(payload)
}

// parseTrailer accepts tag + "~~#$#" + digits + "#" + fingerprint.
func parseTrailer(groupTag, frag string) (int, string, bool) {
	rest, ok := strings.CutPrefix(frag, groupTag)
	if !ok {
		return 0, "", false
	}
	rest, ok = strings.CutPrefix(rest, trailerMarker)
	if !ok {
		return 0, "", false
	}
	countStr, fingerprint, ok := strings.Cut(rest, "#")
	if !ok || countStr == "" || strings.Contains(fingerprint, "#") {
		return 0, "", false
	}
	for _, r := range countStr {
		if r < '0' || r > '9' {
			return 0, "", false
		}
	}
	count, err := strconv.Atoi(countStr)
	if err != nil {
		return 0, "", false
	}
	return count, fingerprint, true
}

func ceilDiv(a, b uint64) uint64 {
	return (a + b - 1) / b
}

func formatMillis(ms int64) string {
	return strconv.FormatInt(ms, 10)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
