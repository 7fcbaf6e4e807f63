package xdag

import (
	"context"
	"fmt"

	"github.com/AlexZinkM/xdaghub/internal/chunk"
	"github.com/AlexZinkM/xdaghub/internal/model"
)

// GetTransactions returns one page of the history of address, or of the
// active account when address is empty.
func (s *Service) GetTransactions(ctx context.Context, address string, page int) (*model.AddressBlockResponse, error) {
	if address == "" {
		acc, err := s.account(ctx, "")
		if err != nil {
			return nil, err
		}
		address = acc.Address()
	}
	resp, err := s.node.QueryAddressBlock(ctx, address, page)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	return resp, nil
}

// RestoreInscriptions reads the whole history of address and rebuilds the
// inscriptions found in its remarks.
func (s *Service) RestoreInscriptions(ctx context.Context, address string) ([]model.RestoredInscription, error) {
	var entries []model.HistoryEntry
	for page := 1; page <= s.opts.MaxHistoryPages; page++ {
		resp, err := s.GetTransactions(ctx, address, page)
		if err != nil {
			return nil, err
		}
		entries = append(entries, resp.Transactions...)
		if page >= resp.TotalPage {
			break
		}
	}
	restored := chunk.RestoreAll(entries, s.opts.GroupWindow)
	log.Debugw("inscriptions restored", "address", address, "entries", len(entries), "inscriptions", len(restored))
	return restored, nil
}
