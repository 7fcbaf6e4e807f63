package xdag

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AlexZinkM/xdaghub/internal/broker"
	"github.com/AlexZinkM/xdaghub/internal/model"
)

// SurfaceForgetter drops the approval surface of a decided request.
type SurfaceForgetter interface {
	Forget(requestID string)
}

// Approvals carries out the user's decisions on pending requests: an
// approved operation runs first and its failure becomes the result error.
type Approvals struct {
	service      *Service
	transactions *broker.Transactions
	inscriptions *broker.Inscriptions
	surfaces     SurfaceForgetter

	mu       sync.Mutex
	deciding map[string]struct{}
}

// NewApprovals creates the decision handler. surfaces may be nil.
func NewApprovals(svc *Service, txs *broker.Transactions, inscs *broker.Inscriptions, surfaces SurfaceForgetter) *Approvals {
	return &Approvals{
		service:      svc,
		transactions: txs,
		inscriptions: inscs,
		surfaces:     surfaces,
		deciding:     make(map[string]struct{}),
	}
}

// claim makes sure one decision per id executes at a time.
func (a *Approvals) claim(id string) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.deciding[id]; busy {
		return nil, fmt.Errorf("%w: %s", broker.ErrUnknownRequest, id)
	}
	a.deciding[id] = struct{}{}
	return func() {
		a.mu.Lock()
		delete(a.deciding, id)
		a.mu.Unlock()
		if a.surfaces != nil {
			a.surfaces.Forget(id)
		}
	}, nil
}

// DecideTransaction resolves a transaction or sign-message request.
func (a *Approvals) DecideTransaction(ctx context.Context, id string, approved bool) error {
	release, err := a.claim(id)
	if err != nil {
		return err
	}
	defer release()

	if !a.transactions.IsPending(id) {
		return fmt.Errorf("%w: %s", broker.ErrUnknownRequest, id)
	}
	req, err := a.transactions.Get(ctx, id)
	if err != nil {
		return err
	}

	d := broker.TransactionDecision{RequestID: id, Approved: approved}
	if approved {
		result, err := a.executeTransaction(ctx, req.Payload)
		if err != nil {
			log.Warnw("approved transaction failed", "id", id, "error", err)
			d.ResultError = err.Error()
		} else {
			d.Result = result
		}
	}
	return a.transactions.HandleMessage(d)
}

func (a *Approvals) executeTransaction(ctx context.Context, p model.TransactionRequestPayload) (*model.TransactionResult, error) {
	switch {
	case p.SignMessage != nil:
		if p.SignMessage.AccountAddress == "" {
			return nil, errors.New("invalid sender in sign message request")
		}
		signed, err := a.service.SignMessage(ctx, p.SignMessage.AccountAddress, p.SignMessage.Message)
		if err != nil {
			return nil, err
		}
		return &model.TransactionResult{SignedMessage: signed}, nil
	case p.Tx != nil && p.Tx.JustSign:
		signed, err := a.service.SignTransaction(ctx, *p.Tx)
		if err != nil {
			return nil, err
		}
		return &model.TransactionResult{Signed: signed}, nil
	case p.Tx != nil:
		block, err := a.service.Transfer(ctx, model.PayRequest{
			FromAddress: p.Tx.AccountAddress,
			ToAddress:   p.Tx.ToAddress,
			Amount:      p.Tx.Amount,
			Remark:      p.Tx.Remark,
		})
		if err != nil {
			return nil, err
		}
		return &model.TransactionResult{Block: block}, nil
	default:
		return nil, errors.New("unexpected transaction request payload")
	}
}

// DecideInscription resolves an inscription request.
func (a *Approvals) DecideInscription(ctx context.Context, id string, approved bool) error {
	release, err := a.claim(id)
	if err != nil {
		return err
	}
	defer release()

	if !a.inscriptions.IsPending(id) {
		return fmt.Errorf("%w: %s", broker.ErrUnknownRequest, id)
	}
	req, err := a.inscriptions.Get(ctx, id)
	if err != nil {
		return err
	}

	d := broker.InscriptionDecision{RequestID: id, Approved: approved}
	if approved {
		sent, err := a.service.Inscribe(ctx, "", req.Payload.Inscription, req.Payload.ImageIndex)
		if err != nil {
			log.Warnw("approved inscription failed", "id", id, "sent", len(sent), "error", err)
			d.ResultError = err.Error()
		} else {
			d.Result = &sent
		}
	}
	return a.inscriptions.HandleMessage(d)
}
