package model

// TransactionDataType is the payload of a transaction approval request
type TransactionDataType struct {
	Type           string  `json:"type"` // always "transaction"
	AccountAddress string  `json:"accountAddress,omitempty"`
	ToAddress      string  `json:"toAddress,omitempty"`
	Amount         string  `json:"amount,omitempty"`
	Remark         string  `json:"remark,omitempty"`
	JustSign       bool    `json:"justSign,omitempty"`
	Data           string  `json:"data,omitempty"`
	Nonce          *string `json:"nonce,omitempty"`
}

// SignMessageDataType is the payload of a sign-message approval request
type SignMessageDataType struct {
	Type           string `json:"type"` // always "sign-message"
	AccountAddress string `json:"accountAddress"`
	Message        string `json:"message"` // base64
}

// TransactionRequestPayload is the payload of a transaction-broker request:
// exactly one of Tx and SignMessage is set.
type TransactionRequestPayload struct {
	Tx          *TransactionDataType `json:"tx,omitempty"`
	SignMessage *SignMessageDataType `json:"signMessage,omitempty"`
}

// IsSignMessage reports whether the payload is the sign-message variant
func (p TransactionRequestPayload) IsSignMessage() bool {
	return p.SignMessage != nil
}

// TransactionBlockResponse is the node view of a submitted block
type TransactionBlockResponse struct {
	Address   string `json:"address"`
	Hash      string `json:"hash"`
	State     string `json:"state"`
	Remark    string `json:"remark,omitempty"`
	ErrorInfo string `json:"errorInfo,omitempty"`
	Refs      []Ref  `json:"refs,omitempty"`
}

// Ref is an input or output of a block
type Ref struct {
	Direction int    `json:"direction"`
	Address   string `json:"address"`
	Amount    string `json:"amount"`
}

// SignedTransaction is the outcome of a sign-only request
type SignedTransaction struct {
	TransactionBlockBytes string `json:"transactionBlockBytes"` // finalized wire hex
	Signature             string `json:"signature"`             // serialized signature
}

// SignedMessage is the outcome of a sign-message request
type SignedMessage struct {
	MessageBytes string `json:"messageBytes"` // base64
	Signature    string `json:"signature"`    // serialized signature
}

// TransactionResult is what an approved transaction request resolves with
type TransactionResult struct {
	Block         *TransactionBlockResponse `json:"block,omitempty"`
	Signed        *SignedTransaction        `json:"signed,omitempty"`
	SignedMessage *SignedMessage            `json:"signedMessage,omitempty"`
}

// HistoryEntry represents one transaction of an address as returned by the node
type HistoryEntry struct {
	Direction int    `json:"direction"`
	Address   string `json:"address"`
	Amount    string `json:"amount"`
	Time      int64  `json:"time"` // unix milliseconds
	Remark    string `json:"remark"`
}

// AddressBlockResponse is one page of address history
type AddressBlockResponse struct {
	Address      string         `json:"address"`
	Balance      string         `json:"balance"`
	TotalPage    int            `json:"totalPage"`
	Transactions []HistoryEntry `json:"transactions"`
}
