package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/AlexZinkM/xdaghub/internal/broker"
	"github.com/AlexZinkM/xdaghub/internal/keyring"
	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/network"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("router")

// ErrNotAllowed is returned when a dApp sends a UI-only payload.
var ErrNotAllowed = fmt.Errorf("%w: payload not allowed from this connection", model.ErrValidation)

// Source describes the sender of a message.
type Source struct {
	// UI is true for the wallet's own UI; false for dApp connections.
	UI      bool
	Origin  string
	FavIcon string
}

// Router is safe for concurrent use.
type Router struct {
	keyring      *keyring.Keyring
	transactions *broker.Transactions
	inscriptions *broker.Inscriptions
	networks     *network.Manager
}

// New creates a router.
func New(kr *keyring.Keyring, txs *broker.Transactions, inscs *broker.Inscriptions, nets *network.Manager) *Router {
	return &Router{keyring: kr, transactions: txs, inscriptions: inscs, networks: nets}
}

// Handle dispatches msg and returns the response envelope. Failures are
// reported as ErrorPayload.
func (r *Router) Handle(ctx context.Context, msg Message, src Source) Message {
	resp, err := r.dispatch(ctx, msg.Payload, src)
	if err != nil {
		log.Debugw("request failed", "id", msg.ID, "origin", src.Origin, "error", err)
		return Message{ID: msg.ID, Payload: ErrorPayload{Code: -1, Error: true, Message: err.Error()}}
	}
	return Message{ID: msg.ID, Payload: resp}
}

func (r *Router) dispatch(ctx context.Context, payload Payload, src Source) (Payload, error) {
	switch p := payload.(type) {
	case ExecuteTransactionRequest:
		res, err := r.transactions.ExecuteOrSignTransaction(ctx, p.Transaction, src.Origin, src.FavIcon)
		if err != nil {
			return nil, err
		}
		return ExecuteTransactionResponse{Result: res}, nil

	case SignMessageRequest:
		signed, err := r.transactions.SignMessage(ctx, p.Args.AccountAddress, p.Args.Message, src.Origin, src.FavIcon)
		if err != nil {
			return nil, err
		}
		return SignMessageResponse{Return: signed}, nil

	case ExecuteInscriptionRequest:
		res, err := r.inscriptions.ExecuteInscription(ctx, p.Inscription, src.Origin, src.FavIcon)
		if err != nil {
			return nil, err
		}
		return ExecuteInscriptionResponse{Result: res}, nil

	case KeyringRequest:
		if !src.UI {
			return nil, ErrNotAllowed
		}
		return r.handleKeyring(ctx, p)

	case TransactionRequestResponse:
		if !src.UI {
			return nil, ErrNotAllowed
		}
		err := r.transactions.HandleMessage(broker.TransactionDecision{
			RequestID:   p.TxID,
			Approved:    p.Approved,
			Result:      p.TxResult,
			ResultError: p.TxResultError,
		})
		if err != nil {
			return nil, err
		}
		return Done{}, nil

	case InscriptionRequestResponse:
		if !src.UI {
			return nil, ErrNotAllowed
		}
		d := broker.InscriptionDecision{
			RequestID:   p.InscID,
			Approved:    p.Approved,
			ResultError: p.InscResultError,
		}
		if p.InscResult != nil {
			d.Result = &p.InscResult
		}
		if err := r.inscriptions.HandleMessage(d); err != nil {
			return nil, err
		}
		return Done{}, nil

	case GetTransactionRequests:
		if !src.UI {
			return nil, ErrNotAllowed
		}
		reqs, err := r.transactions.Requests(ctx)
		if err != nil {
			return nil, err
		}
		return GetTransactionRequestsResponse{TxRequests: sortedRequests(reqs)}, nil

	case GetInscriptionRequests:
		if !src.UI {
			return nil, ErrNotAllowed
		}
		reqs, err := r.inscriptions.Requests(ctx)
		if err != nil {
			return nil, err
		}
		return GetInscriptionRequestsResponse{InscRequests: sortedRequests(reqs)}, nil

	case GetNetwork:
		active, err := r.networks.Active(ctx)
		if err != nil {
			return nil, err
		}
		return SetNetwork{Network: active}, nil

	case SetNetwork:
		if !src.UI {
			return nil, ErrNotAllowed
		}
		active, err := r.networks.SetActive(ctx, p.Network)
		if err != nil {
			return nil, err
		}
		return SetNetwork{Network: active}, nil

	case nil:
		return nil, fmt.Errorf("%w: empty payload", model.ErrValidation)

	default:
		return nil, fmt.Errorf("%w: unexpected payload %s", model.ErrValidation, payload.payloadType())
	}
}

// sortedRequests orders requests oldest first.
func sortedRequests[P, R any](reqs map[string]broker.Request[P, R]) []broker.Request[P, R] {
	out := make([]broker.Request[P, R], 0, len(reqs))
	for _, req := range reqs {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedDate.Equal(out[j].CreatedDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedDate.Before(out[j].CreatedDate)
	})
	return out
}

// WalletStatus is the return of the walletStatusUpdate keyring method.
type WalletStatus struct {
	IsLocked      bool                `json:"isLocked"`
	IsInitialized bool                `json:"isInitialized"`
	Accounts      []model.AccountInfo `json:"accounts"`
	ActiveAddress *string             `json:"activeAddress"`
}

type passwordArgs struct {
	Password string `json:"password"`
}

func decodeArgs(req KeyringRequest, out any) error {
	if len(req.Args) == 0 {
		return fmt.Errorf("%w: %s needs arguments", model.ErrValidation, req.Method)
	}
	if err := json.Unmarshal(req.Args, out); err != nil {
		return fmt.Errorf("%w: %s arguments: %v", model.ErrValidation, req.Method, err)
	}
	return nil
}

func (r *Router) handleKeyring(ctx context.Context, req KeyringRequest) (Payload, error) {
	ret, err := r.keyringMethod(ctx, req)
	if err != nil {
		return nil, err
	}
	return KeyringResponse{Method: req.Method, Return: ret}, nil
}

func (r *Router) keyringMethod(ctx context.Context, req KeyringRequest) (any, error) {
	kr := r.keyring
	switch req.Method {
	case "create":
		var args struct {
			Password        string `json:"password"`
			ImportedEntropy string `json:"importedEntropy"`
		}
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		pw := []byte(args.Password)
		defer clear(pw)
		return nil, kr.CreateVault(ctx, pw, args.ImportedEntropy)

	case "getEntropy":
		var args passwordArgs
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		if args.Password == "" {
			return nil, fmt.Errorf("%w: getEntropy needs the vault password", model.ErrAuthentication)
		}
		pw := []byte(args.Password)
		defer clear(pw)
		if err := kr.VerifyPassword(ctx, pw); err != nil {
			return nil, err
		}
		return kr.Entropy()

	case "unlock":
		var args passwordArgs
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		pw := []byte(args.Password)
		defer clear(pw)
		return nil, kr.Unlock(ctx, pw)

	case "walletStatusUpdate":
		return r.walletStatus(ctx)

	case "lock":
		return nil, kr.Lock(ctx)

	case "clear":
		return nil, kr.ClearVault(ctx)

	case "appStatusUpdate":
		var args struct {
			Active bool `json:"active"`
		}
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		if !args.Active {
			return nil, nil
		}
		return nil, kr.PostponeLock(ctx)

	case "setLockTimeout":
		var args struct {
			Timeout int `json:"timeout"`
		}
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		return nil, kr.SetLockTimeout(ctx, args.Timeout)

	case "signData":
		var args struct {
			Data    string `json:"data"`
			Address string `json:"address"`
		}
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		return kr.SignData(ctx, args.Address, args.Data)

	case "switchAccount":
		var args struct {
			Address string `json:"address"`
		}
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		ok, err := kr.ChangeActiveAccount(ctx, args.Address)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: cannot switch to account %s", model.ErrState, args.Address)
		}
		return nil, nil

	case "deriveNextAccount":
		acc, err := kr.DeriveNextAccount(ctx)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			return nil, fmt.Errorf("failed to derive next account: %w", model.ErrLocked)
		}
		return map[string]string{"accountAddress": acc.Address()}, nil

	case "verifyPassword":
		var args passwordArgs
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		pw := []byte(args.Password)
		defer clear(pw)
		return nil, kr.VerifyPassword(ctx, pw)

	case "changePassword":
		var args struct {
			Password    string `json:"password"`
			NewPassword string `json:"newPassword"`
		}
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		pw, newPw := []byte(args.Password), []byte(args.NewPassword)
		defer clear(pw)
		defer clear(newPw)
		return nil, kr.Reseal(ctx, pw, newPw)

	case "exportAccount":
		var args struct {
			Password       string `json:"password"`
			AccountAddress string `json:"accountAddress"`
		}
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		pw := []byte(args.Password)
		defer clear(pw)
		exp, err := kr.ExportAccountKeypair(ctx, args.AccountAddress, pw)
		if err != nil {
			return nil, err
		}
		if exp == nil {
			return nil, fmt.Errorf("%w: account %s", model.ErrNotFound, args.AccountAddress)
		}
		return map[string]any{"keyPair": exp}, nil

	case "importPrivateKey":
		var args struct {
			Password string                `json:"password"`
			KeyPair  model.ExportedKeypair `json:"keyPair"`
		}
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		pw := []byte(args.Password)
		defer clear(pw)
		if _, err := kr.ImportAccountKeypair(ctx, args.KeyPair, pw); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: unknown keyring method %q", model.ErrValidation, req.Method)
	}
}

func (r *Router) walletStatus(ctx context.Context) (*WalletStatus, error) {
	initialized, err := r.keyring.IsWalletInitialized(ctx)
	if err != nil {
		return nil, err
	}
	status := &WalletStatus{
		IsLocked:      r.keyring.IsLocked(),
		IsInitialized: initialized,
		Accounts:      []model.AccountInfo{},
	}
	for _, acc := range r.keyring.Accounts() {
		status.Accounts = append(status.Accounts, keyring.Info(acc))
	}
	active, err := r.keyring.ActiveAccount(ctx)
	if err != nil && !errors.Is(err, model.ErrLocked) {
		return nil, err
	}
	if active != nil {
		addr := active.Address()
		status.ActiveAddress = &addr
	}
	return status, nil
}
