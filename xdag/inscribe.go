package xdag

import (
	"context"
	"fmt"

	"github.com/AlexZinkM/xdaghub/internal/chunk"
	"github.com/AlexZinkM/xdaghub/internal/common"
	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/txcodec"
)

// PrepareInscription encodes the inscription under groupTag without sending anything.
func PrepareInscription(insc model.Inscription, groupTag string) (*chunk.Encoded, error) {
	if !txcodec.IsValidAddress(insc.ToAddress) {
		return nil, fmt.Errorf("%w: invalid inscription target address", model.ErrValidation)
	}
	payload := insc.InscriptionString
	if payload == "" {
		var err error
		if payload, err = chunk.EncodeContent(insc.InscriptionContent); err != nil {
			return nil, fmt.Errorf("failed to encode inscription content: %w", err)
		}
	}
	return chunk.Encode(groupTag, payload, insc.AwardRatio)
}

// Inscribe sends one transfer per fragment to the inscription target, in
// fragment order, and returns the block addresses. On failure the addresses
// of the fragments already sent are returned with the error.
func (s *Service) Inscribe(ctx context.Context, from string, insc model.Inscription, groupTag string) ([]string, error) {
	if insc.AwardRatio == 0 {
		insc.AwardRatio = s.opts.AwardRatio
	}
	enc, err := PrepareInscription(insc, groupTag)
	if err != nil {
		return nil, err
	}
	acc, err := s.account(ctx, from)
	if err != nil {
		return nil, err
	}
	if err := s.checkBalance(ctx, acc.Address(), common.NanoToXDAG(enc.TotalCost)); err != nil {
		return nil, err
	}

	amount := common.NanoToXDAG(enc.SingleTxCost)
	sent := make([]string, 0, len(enc.Chunks))
	for i, fragment := range enc.Chunks {
		tx, err := s.signTransfer(ctx, acc, insc.ToAddress, amount, fragment, nil)
		if err != nil {
			return sent, fmt.Errorf("fragment %d of %d: %w", i+1, len(enc.Chunks), err)
		}
		block, err := s.submit(ctx, tx)
		if err != nil {
			return sent, fmt.Errorf("fragment %d of %d: %w", i+1, len(enc.Chunks), err)
		}
		sent = append(sent, block.Address)
	}
	log.Infow("inscription sent", "group", groupTag, "fragments", len(sent), "totalCost", common.NanoToXDAG(enc.TotalCost))
	return sent, nil
}
