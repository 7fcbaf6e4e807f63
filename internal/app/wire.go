// Package app wires stores, services and clients together.
package app

import (
	"context"
	"fmt"

	"github.com/AlexZinkM/xdaghub/internal/broker"
	"github.com/AlexZinkM/xdaghub/internal/client"
	"github.com/AlexZinkM/xdaghub/internal/config"
	"github.com/AlexZinkM/xdaghub/internal/crypto"
	"github.com/AlexZinkM/xdaghub/internal/keyring"
	"github.com/AlexZinkM/xdaghub/internal/network"
	"github.com/AlexZinkM/xdaghub/internal/router"
	"github.com/AlexZinkM/xdaghub/internal/store"
	"github.com/AlexZinkM/xdaghub/internal/surface"
	"github.com/AlexZinkM/xdaghub/internal/txcodec"
	"github.com/AlexZinkM/xdaghub/xdag"

	"github.com/lightningnetwork/lnd/clock"
	"go.uber.org/multierr"
)

// Wire bundles all stores, services and clients of the signer.
type Wire struct {
	Config *config.Config

	Durable store.Store
	Session store.Store

	Keyring      *keyring.Keyring
	Surfaces     *surface.Registry
	Transactions *broker.Transactions
	Inscriptions *broker.Inscriptions
	Node         *client.XDAGClient
	Wallet       *xdag.Service
	Approvals    *xdag.Approvals
	Network      *network.Manager
	Router       *router.Router
}

// NewWire opens the LevelDB store at cfg.StorePath and constructs the
// dependency graph on top of it.
func NewWire(cfg *config.Config) (*Wire, error) {
	durable, err := store.OpenLevelDB(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	w, err := NewWireWithStore(cfg, durable, clock.NewDefaultClock())
	if err != nil {
		return nil, multierr.Append(err, durable.Close())
	}
	return w, nil
}

// NewWireWithStore constructs the dependency graph over an opened durable store.
func NewWireWithStore(cfg *config.Config, durable store.Store, clk clock.Clock) (*Wire, error) {
	codecNet, err := txcodec.ParseNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	startEnv := network.Mainnet
	if codecNet == txcodec.Testnet {
		startEnv = network.Testnet
	}
	nodes := map[network.Env]string{
		network.Mainnet: cfg.MainnetRPCURL,
		network.Testnet: cfg.TestnetRPCURL,
		network.Local:   cfg.LocalRPCURL,
	}
	if cfg.RPCURL != "" {
		nodes[startEnv] = cfg.RPCURL
	}
	node, err := client.NewXDAGClient(nodes[startEnv])
	if err != nil {
		return nil, err
	}

	// session state lives in memory only
	session := store.NewMemory()

	kr := keyring.New(keyring.Config{
		AutoLockMin:     cfg.AutoLockMinMinutes,
		AutoLockMax:     cfg.AutoLockMaxMinutes,
		AutoLockDefault: cfg.AutoLockDefaultMinutes,
		Scrypt:          crypto.WithN(cfg.VaultScryptN),
	}, durable, session, clk)

	surfaces := surface.NewRegistry(clk)
	txs := broker.NewTransactions(durable, surfaces, clk)
	inscs := broker.NewInscriptions(durable, surfaces, clk)

	wallet := xdag.NewService(kr, node, xdag.Options{
		Network:          codecNet,
		GroupWindow:      cfg.InscriptionGroupWindow,
		AwardRatio:       cfg.InscriptionAwardRatio,
		TransferCooldown: cfg.PayCooldown(),
		Clock:            clk,
	})

	nets, err := network.NewManager(durable, nodes, startEnv, func(a network.Active) error {
		if err := node.SetURL(a.FullNode); err != nil {
			return err
		}
		// local and custom nodes keep the configured header family
		switch a.Env {
		case network.Mainnet:
			wallet.SetNetwork(txcodec.Mainnet)
		case network.Testnet:
			wallet.SetNetwork(txcodec.Testnet)
		default:
			wallet.SetNetwork(codecNet)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Wire{
		Config:       cfg,
		Durable:      durable,
		Session:      session,
		Keyring:      kr,
		Surfaces:     surfaces,
		Transactions: txs,
		Inscriptions: inscs,
		Node:         node,
		Wallet:       wallet,
		Approvals:    xdag.NewApprovals(wallet, txs, inscs, surfaces),
		Network:      nets,
		Router:       router.New(kr, txs, inscs, nets),
	}, nil
}

// Start sweeps stale approval requests left by a previous run and
// reconnects to the last selected network.
func (w *Wire) Start(ctx context.Context) error {
	if _, err := w.Network.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore network: %w", err)
	}
	if err := w.Transactions.ClearStale(ctx); err != nil {
		return fmt.Errorf("failed to clear stale transaction requests: %w", err)
	}
	if err := w.Inscriptions.ClearStale(ctx); err != nil {
		return fmt.Errorf("failed to clear stale inscription requests: %w", err)
	}
	return nil
}

// Close locks the keyring, closes open approval surfaces and the stores.
func (w *Wire) Close() error {
	w.Surfaces.CloseAll()
	return multierr.Combine(
		w.Keyring.Lock(context.Background()),
		w.Session.Close(),
		w.Durable.Close(),
	)
}
