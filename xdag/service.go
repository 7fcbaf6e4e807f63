// Package xdag implements the wallet operations that combine the keyring,
// the transaction codec and the node: transfers, message signing,
// inscriptions and history.
package xdag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AlexZinkM/xdaghub/internal/chunk"
	"github.com/AlexZinkM/xdaghub/internal/keyring"
	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/txcodec"

	logging "github.com/ipfs/go-log/v2"
	"github.com/lightningnetwork/lnd/clock"
)

var log = logging.Logger("xdag")

// Node is the part of the node API the wallet operations use.
type Node interface {
	GetNonce(ctx context.Context, address string) (string, error)
	GetBalance(ctx context.Context, address string) (string, error)
	SendRawTransaction(ctx context.Context, wire string) (*model.TransactionBlockResponse, error)
	QueryAddressBlock(ctx context.Context, address string, page int) (*model.AddressBlockResponse, error)
}

// Signer resolves accounts and signs digests.
type Signer interface {
	Account(address string) (keyring.Account, error)
	ActiveAccount(ctx context.Context) (keyring.Account, error)
	SignData(ctx context.Context, address, digestHex string) (string, error)
}

// Options configures a Service.
type Options struct {
	Network     txcodec.Network
	GroupWindow time.Duration
	// AwardRatio applies to inscriptions that carry none.
	AwardRatio float64
	// MaxHistoryPages bounds the pages read when restoring inscriptions.
	MaxHistoryPages int
	// TransferCooldown is the minimum pause between two transfers from the
	// same account. Zero disables it.
	TransferCooldown time.Duration
	Clock            clock.Clock
}

// Service runs wallet operations for the accounts of one keyring.
type Service struct {
	signer Signer
	node   Node
	opts   Options

	mu       sync.Mutex
	network  txcodec.Network
	lastPaid map[string]time.Time
	// payMu serializes transfers so the cooldown check and the submission
	// see the same state
	payMu sync.Mutex
}

// NewService creates a service. Zero options fall back to mainnet, the
// default group window and the wall clock.
func NewService(signer Signer, node Node, opts Options) *Service {
	if opts.Network == "" {
		opts.Network = txcodec.Mainnet
	}
	if opts.GroupWindow <= 0 {
		opts.GroupWindow = chunk.DefaultGroupWindow
	}
	if opts.MaxHistoryPages <= 0 {
		opts.MaxHistoryPages = 100
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewDefaultClock()
	}
	return &Service{
		signer:   signer,
		node:     node,
		opts:     opts,
		network:  opts.Network,
		lastPaid: make(map[string]time.Time),
	}
}

// SetNetwork switches the header constant family of new transactions.
func (s *Service) SetNetwork(n txcodec.Network) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.network = n
}

// Network returns the header constant family of new transactions.
func (s *Service) Network() txcodec.Network {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.network
}

// account returns the account at address, or the active account when
// address is empty.
func (s *Service) account(ctx context.Context, address string) (keyring.Account, error) {
	if address != "" {
		return s.signer.Account(address)
	}
	acc, err := s.signer.ActiveAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get active account: %w", err)
	}
	if acc == nil {
		return nil, fmt.Errorf("no active account: %w", model.ErrLocked)
	}
	return acc, nil
}
