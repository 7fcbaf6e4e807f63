package xdag

import (
	"context"
	"fmt"

	"github.com/AlexZinkM/xdaghub/internal/model"
)

// GetBalance gets the balance of address, or of the active account when
// address is empty.
func (s *Service) GetBalance(ctx context.Context, address string) (*model.BalanceResponse, error) {
	if address == "" {
		acc, err := s.account(ctx, "")
		if err != nil {
			return nil, err
		}
		address = acc.Address()
	}

	balance, err := s.node.GetBalance(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &model.BalanceResponse{Address: address, Balance: balance}, nil
}
