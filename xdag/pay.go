package xdag

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/AlexZinkM/xdaghub/internal/common"
	"github.com/AlexZinkM/xdaghub/internal/keyring"
	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/txcodec"

	"golang.org/x/crypto/blake2b"
)

// transfer is one signed transfer ready for submission
type transfer struct {
	builder   *txcodec.Builder
	wire      string
	signature string
}

// Transfer signs a transfer and submits it to the node. The sender is the
// active account when FromAddress is empty. Remarks longer than the remark
// slot are truncated.
func (s *Service) Transfer(ctx context.Context, req model.PayRequest) (*model.TransactionBlockResponse, error) {
	if err := validateTransfer(req.ToAddress, req.Amount); err != nil {
		return nil, err
	}
	acc, err := s.account(ctx, req.FromAddress)
	if err != nil {
		return nil, err
	}

	s.payMu.Lock()
	defer s.payMu.Unlock()
	if err := s.checkCooldown(acc.Address()); err != nil {
		return nil, err
	}

	if err := s.checkBalance(ctx, acc.Address(), req.Amount); err != nil {
		return nil, err
	}

	tx, err := s.signTransfer(ctx, acc, req.ToAddress, req.Amount, truncateRemark(req.Remark), nil)
	if err != nil {
		return nil, err
	}
	block, err := s.submit(ctx, tx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.lastPaid[acc.Address()] = s.opts.Clock.Now()
	s.mu.Unlock()
	return block, nil
}

// checkCooldown fails while the last transfer from address is more recent
// than the configured cooldown.
func (s *Service) checkCooldown(address string) error {
	if s.opts.TransferCooldown <= 0 {
		return nil
	}
	s.mu.Lock()
	last, ok := s.lastPaid[address]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if elapsed := s.opts.Clock.Now().Sub(last); elapsed < s.opts.TransferCooldown {
		remaining := s.opts.TransferCooldown - elapsed
		return fmt.Errorf("%w: cooldown active, please wait %v", model.ErrState, remaining.Round(time.Second))
	}
	return nil
}

// SignTransaction signs tx without submitting it.
func (s *Service) SignTransaction(ctx context.Context, tx model.TransactionDataType) (*model.SignedTransaction, error) {
	if err := validateTransfer(tx.ToAddress, tx.Amount); err != nil {
		return nil, err
	}
	acc, err := s.account(ctx, tx.AccountAddress)
	if err != nil {
		return nil, err
	}
	signed, err := s.signTransfer(ctx, acc, tx.ToAddress, tx.Amount, truncateRemark(tx.Remark), tx.Nonce)
	if err != nil {
		return nil, err
	}
	return &model.SignedTransaction{
		TransactionBlockBytes: signed.wire,
		Signature:             signed.signature,
	}, nil
}

// SignMessage signs the blake2b-256 hash of a base64 message.
func (s *Service) SignMessage(ctx context.Context, address, message string) (*model.SignedMessage, error) {
	raw, err := base64.StdEncoding.DecodeString(message)
	if err != nil {
		return nil, fmt.Errorf("%w: message is not base64", model.ErrValidation)
	}
	acc, err := s.account(ctx, address)
	if err != nil {
		return nil, err
	}

	digest := blake2b.Sum256(raw)
	sig, err := s.signer.SignData(ctx, acc.Address(), hex.EncodeToString(digest[:]))
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return &model.SignedMessage{MessageBytes: message, Signature: sig}, nil
}

// signTransfer fetches the nonce unless given, builds, signs and finalizes.
func (s *Service) signTransfer(ctx context.Context, acc keyring.Account, to, amount, remark string, nonce *string) (*transfer, error) {
	var n string
	if nonce != nil && *nonce != "" {
		n = *nonce
	} else {
		var err error
		if n, err = s.node.GetNonce(ctx, acc.Address()); err != nil {
			return nil, err
		}
	}

	b := &txcodec.Builder{
		Sender:    acc.Address(),
		Receiver:  to,
		Amount:    amount,
		Nonce:     n,
		Remark:    remark,
		PublicKey: acc.PublicKey(),
		Network:   s.Network(),
		Time:      s.opts.Clock.Now(),
	}
	digest, err := b.DigestHex()
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	serialized, err := s.signer.SignData(ctx, acc.Address(), digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	parsed, err := keyring.ParseSignature(serialized)
	if err != nil {
		return nil, err
	}

	wire, err := b.Finalize(parsed.Signature)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize transaction: %w", err)
	}
	return &transfer{builder: b, wire: wire, signature: serialized}, nil
}

func (s *Service) submit(ctx context.Context, tx *transfer) (*model.TransactionBlockResponse, error) {
	block, err := s.node.SendRawTransaction(ctx, tx.wire)
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	log.Infow("transfer submitted", "from", tx.builder.Sender, "to", tx.builder.Receiver,
		"amount", tx.builder.Amount, "block", block.Address)
	return block, nil
}

// checkBalance fails when address holds less than amount.
func (s *Service) checkBalance(ctx context.Context, address, amount string) error {
	balance, err := s.node.GetBalance(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to check balance: %w", err)
	}
	cmp, err := common.CompareAmounts(balance, amount)
	if err != nil {
		return err
	}
	if cmp < 0 {
		return fmt.Errorf("%w: insufficient XDAG balance. Have: %s XDAG", model.ErrValidation, balance)
	}
	return nil
}

func validateTransfer(to, amount string) error {
	if !txcodec.IsValidAddress(to) {
		return fmt.Errorf("%w: invalid XDAG address", model.ErrValidation)
	}
	nano, err := common.XDAGToNano(amount)
	if err != nil {
		return fmt.Errorf("%w: invalid amount: %v", model.ErrValidation, err)
	}
	if nano == 0 {
		return fmt.Errorf("%w: amount must be positive", model.ErrValidation)
	}
	return nil
}

func truncateRemark(r string) string {
	cut := txcodec.TruncateRemark(r)
	if len(cut) < len(r) {
		log.Debugw("remark truncated", "from", len(r), "to", len(cut))
	}
	return cut
}
