package model

// PayRequest represents request for POST /wallet/transfer
type PayRequest struct {
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Remark      string `json:"remark,omitempty"`
}

// PayResponse represents response for POST /wallet/transfer
type PayResponse struct {
	Block TransactionBlockResponse `json:"block"`
}

// DecisionRequest is the body of an approval decision
type DecisionRequest struct {
	Approved bool `json:"approved"`
}

// BalanceResponse represents response for GET /wallet/balance
type BalanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}
