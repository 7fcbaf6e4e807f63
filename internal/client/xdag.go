package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AlexZinkM/xdaghub/internal/model"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	logging "github.com/ipfs/go-log/v2"
	"github.com/jpillora/backoff"
)

var log = logging.Logger("client")

const (
	methodGetNonce       = "xdag_getTransactionNonce"
	methodGetBalance     = "xdag_getBalance"
	methodSendRawTx      = "xdag_sendRawTransaction"
	methodGetBlockByHash = "xdag_getBlockByHash"

	// DefaultPollAttempts is how often a submitted block is looked up before giving up.
	DefaultPollAttempts = 9
	// DefaultPollInterval is the pause between block lookups.
	DefaultPollInterval = 2 * time.Second
)

// XDAGClient is a client for the JSON-RPC API of an XDAG node
type XDAGClient struct {
	mu        sync.RWMutex
	rpcClient *rpc.Client
	rpcURL    string

	PollAttempts int
	PollInterval time.Duration
}

// NewXDAGClient creates a new client for the node at rpcURL.
func NewXDAGClient(rpcURL string) (*XDAGClient, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, errors.New("node RPC URL is empty")
	}
	return &XDAGClient{
		rpcClient:    rpc.New(rpcURL),
		rpcURL:       rpcURL,
		PollAttempts: DefaultPollAttempts,
		PollInterval: DefaultPollInterval,
	}, nil
}

// URL returns the node endpoint
func (c *XDAGClient) URL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rpcURL
}

// SetURL points the client at another node. Calls in flight finish on the
// previous one.
func (c *XDAGClient) SetURL(rpcURL string) error {
	if strings.TrimSpace(rpcURL) == "" {
		return errors.New("node RPC URL is empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if rpcURL == c.rpcURL {
		return nil
	}
	log.Infow("switching node", "from", c.rpcURL, "to", rpcURL)
	c.rpcClient = rpc.New(rpcURL)
	c.rpcURL = rpcURL
	return nil
}

func (c *XDAGClient) call(ctx context.Context, out any, method string, params ...any) error {
	c.mu.RLock()
	rc := c.rpcClient
	c.mu.RUnlock()
	err := rc.RPCCallForInto(ctx, out, method, params)
	if err == nil {
		return nil
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		log.Debugw("node returned error", "method", method, "code", rpcErr.Code, "message", rpcErr.Message)
	}
	return fmt.Errorf("%s: %w", method, err)
}

// GetNonce returns the transaction nonce of address. The node answers "0"
// for addresses it cannot serve, which is reported as an error.
func (c *XDAGClient) GetNonce(ctx context.Context, address string) (string, error) {
	var nonce string
	if err := c.call(ctx, &nonce, methodGetNonce, address); err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}
	if nonce == "" || nonce == "0" {
		return "", fmt.Errorf("%w: invalid nonce from xdag block chain", model.ErrSubmission)
	}
	return nonce, nil
}

// GetBalance returns the balance of address in display units
func (c *XDAGClient) GetBalance(ctx context.Context, address string) (string, error) {
	var balance string
	if err := c.call(ctx, &balance, methodGetBalance, address); err != nil {
		return "", fmt.Errorf("failed to get balance: %w", err)
	}
	if balance == "" {
		balance = "0"
	}
	return balance, nil
}

// GetTransactionBlock looks up a block by hash or address. A block the node
// does not know yet comes back with State "error" and ErrorInfo set.
func (c *XDAGClient) GetTransactionBlock(ctx context.Context, hash string) (*model.TransactionBlockResponse, error) {
	var block *model.TransactionBlockResponse
	if err := c.call(ctx, &block, methodGetBlockByHash, hash, 1); err != nil {
		return nil, fmt.Errorf("failed to get block: %w", err)
	}
	if block == nil || block.Address == "" || block.Hash == "" {
		return &model.TransactionBlockResponse{
			State:     "error",
			ErrorInfo: "error get transaction block.",
		}, nil
	}
	return block, nil
}

// QueryAddressBlock returns one page of the history of address. Pages start at 1.
func (c *XDAGClient) QueryAddressBlock(ctx context.Context, address string, page int) (*model.AddressBlockResponse, error) {
	if page < 1 {
		page = 1
	}
	var resp *model.AddressBlockResponse
	if err := c.call(ctx, &resp, methodGetBlockByHash, address, page); err != nil {
		return nil, fmt.Errorf("failed to query address block: %w", err)
	}
	if resp == nil || resp.Address == "" || resp.Balance == "" {
		return &model.AddressBlockResponse{Balance: "0"}, nil
	}
	return resp, nil
}

// SendRawTransaction submits the finalized wire hex and waits until the node
// reports the new block, polling up to PollAttempts times.
func (c *XDAGClient) SendRawTransaction(ctx context.Context, wire string) (*model.TransactionBlockResponse, error) {
	var blockAddress string
	if err := c.call(ctx, &blockAddress, methodSendRawTx, wire); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSubmission, err)
	}
	if blockAddress == "" {
		return nil, fmt.Errorf("%w: error in transfer coins", model.ErrSubmission)
	}
	log.Infow("transaction submitted", "block", blockAddress)

	b := &backoff.Backoff{
		Min:    c.PollInterval,
		Max:    2 * c.PollInterval,
		Factor: 1.2,
		Jitter: true,
	}
	for attempt := 0; attempt < c.PollAttempts; attempt++ {
		block, err := c.GetTransactionBlock(ctx, blockAddress)
		switch {
		case err != nil:
			log.Debugw("block lookup failed", "block", blockAddress, "attempt", attempt, "error", err)
		case block.ErrorInfo == "":
			return block, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return nil, fmt.Errorf("%w: block %s not confirmed after %d lookups", model.ErrSubmission, blockAddress, c.PollAttempts)
}
