// Package nodetest runs an in-process XDAG node that answers the JSON-RPC
// methods used by the client.
package nodetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/AlexZinkM/xdaghub/internal/model"
)

type request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Node is a fake node. Exported fields may be changed between calls.
type Node struct {
	Server *httptest.Server

	mu sync.Mutex

	Nonce    string
	Balances map[string]string
	// History is served page by page for xdag_getBlockByHash on an address.
	History  map[string][]model.HistoryEntry
	PageSize int
	// PendingLookups is the number of lookups a new block stays unknown.
	PendingLookups int
	// RejectSubmit makes xdag_sendRawTransaction answer with an empty result.
	RejectSubmit bool

	submitted []string
	blocks    map[string]*model.TransactionBlockResponse
	lookups   map[string]int
	calls     map[string]int
}

// New starts a node. Close it with Close.
func New() *Node {
	n := &Node{
		Nonce:    "1",
		Balances: make(map[string]string),
		History:  make(map[string][]model.HistoryEntry),
		PageSize: 10,
		blocks:   make(map[string]*model.TransactionBlockResponse),
		lookups:  make(map[string]int),
		calls:    make(map[string]int),
	}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	return n
}

// URL returns the RPC endpoint.
func (n *Node) URL() string { return n.Server.URL }

// Close stops the server.
func (n *Node) Close() { n.Server.Close() }

// Submitted returns the wire strings received so far.
func (n *Node) Submitted() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.submitted...)
}

// Calls returns how often method was called.
func (n *Node) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls[req.Method]++
	result, rerr := n.handle(req)
	n.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rerr})
}

func (n *Node) handle(req request) (any, *rpcError) {
	var first string
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params[0], &first); err != nil {
			return nil, &rpcError{Code: -32602, Message: "invalid params"}
		}
	}

	switch req.Method {
	case "xdag_getTransactionNonce":
		return n.Nonce, nil
	case "xdag_getBalance":
		if b, ok := n.Balances[first]; ok {
			return b, nil
		}
		return "0", nil
	case "xdag_sendRawTransaction":
		if n.RejectSubmit {
			return "", nil
		}
		n.submitted = append(n.submitted, first)
		addr := fmt.Sprintf("block%d", len(n.submitted))
		n.blocks[addr] = &model.TransactionBlockResponse{
			Address: addr,
			Hash:    fmt.Sprintf("%064x", len(n.submitted)),
			State:   "Pending",
		}
		return addr, nil
	case "xdag_getBlockByHash":
		if block, ok := n.blocks[first]; ok {
			n.lookups[first]++
			if n.lookups[first] <= n.PendingLookups {
				return nil, nil
			}
			return block, nil
		}
		if entries, ok := n.History[first]; ok {
			page := 1
			if len(req.Params) > 1 {
				json.Unmarshal(req.Params[1], &page)
			}
			return n.page(first, entries, page), nil
		}
		return nil, nil
	default:
		return nil, &rpcError{Code: -32601, Message: "method not found"}
	}
}

func (n *Node) page(address string, entries []model.HistoryEntry, page int) model.AddressBlockResponse {
	size := n.PageSize
	total := (len(entries) + size - 1) / size
	if total == 0 {
		total = 1
	}
	start := (page - 1) * size
	if start > len(entries) {
		start = len(entries)
	}
	end := min(start+size, len(entries))
	balance, ok := n.Balances[address]
	if !ok {
		balance = "0"
	}
	return model.AddressBlockResponse{
		Address:      address,
		Balance:      balance,
		TotalPage:    total,
		Transactions: entries[start:end],
	}
}
