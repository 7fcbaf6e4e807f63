package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/store"

	"github.com/lightningnetwork/lnd/clock"
)

// TransactionRoute is the approval surface route of transfers and message signing.
const TransactionRoute = "/dapp/approve/"

type (
	TransactionRequest  = Request[model.TransactionRequestPayload, model.TransactionResult]
	TransactionDecision = Decision[model.TransactionResult]
)

// Transactions brokers transfer, sign-only and sign-message requests.
type Transactions struct {
	*Broker[model.TransactionRequestPayload, model.TransactionResult]
}

// NewTransactions creates the transaction broker.
func NewTransactions(st store.Store, opener SurfaceOpener, clk clock.Clock) *Transactions {
	return &Transactions{New[model.TransactionRequestPayload, model.TransactionResult](Config{
		StoreKey: store.KeyTransactions,
		Route:    TransactionRoute,
	}, st, opener, clk)}
}

// ExecuteOrSignTransaction asks the user to approve tx. With JustSign set the
// signed transaction is returned, otherwise the submitted block.
func (t *Transactions) ExecuteOrSignTransaction(ctx context.Context, tx model.TransactionDataType, origin, favIcon string) (*model.TransactionResult, error) {
	tx.Type = "transaction"
	req, err := t.Request(ctx, model.TransactionRequestPayload{Tx: &tx}, origin, favIcon)
	if err != nil {
		return nil, err
	}
	if req.ResultError != "" {
		return nil, fmt.Errorf("transaction failed with the following error. %s: %w", req.ResultError, model.ErrSubmission)
	}
	if req.Result == nil {
		return nil, errors.New("transaction result is empty")
	}
	if tx.JustSign {
		if req.Result.Signed == nil {
			return nil, errors.New("transaction signature is empty")
		}
	} else if req.Result.Block == nil {
		return nil, errors.New("transaction result is empty")
	}
	return req.Result, nil
}

// SignMessage asks the user to sign a message with accountAddress.
func (t *Transactions) SignMessage(ctx context.Context, accountAddress, message, origin, favIcon string) (*model.SignedMessage, error) {
	req, err := t.Request(ctx, model.TransactionRequestPayload{SignMessage: &model.SignMessageDataType{
		Type:           "sign-message",
		AccountAddress: accountAddress,
		Message:        message,
	}}, origin, favIcon)
	if err != nil {
		return nil, err
	}
	if req.ResultError != "" {
		return nil, fmt.Errorf("signing message failed with the following error %s", req.ResultError)
	}
	if req.Result == nil {
		return nil, errors.New("sign message result is empty")
	}
	if req.Result.SignedMessage == nil {
		return nil, errors.New("sign message error, unknown result")
	}
	return req.Result.SignedMessage, nil
}
