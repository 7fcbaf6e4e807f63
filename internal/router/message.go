// Package router dispatches typed request envelopes from the UI and from
// dApp connections to the keyring and the approval brokers.
package router

import (
	"encoding/json"
	"fmt"

	"github.com/AlexZinkM/xdaghub/internal/broker"
	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/network"
)

// Message is the envelope exchanged with UI and dApp contexts. A response
// carries the id of its request.
type Message struct {
	ID      string
	Payload Payload
}

// Payload is one of the variants below. The set is closed.
type Payload interface {
	payloadType() string
}

// KeyringRequest calls a keyring method. Args depend on Method.
type KeyringRequest struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// KeyringResponse is the return value of a keyring method.
type KeyringResponse struct {
	Method string `json:"method"`
	Return any    `json:"return,omitempty"`
}

type ExecuteTransactionRequest struct {
	Transaction model.TransactionDataType `json:"transaction"`
}

type ExecuteTransactionResponse struct {
	Result *model.TransactionResult `json:"result"`
}

type SignMessageRequest struct {
	Args model.SignMessageDataType `json:"args"`
}

type SignMessageResponse struct {
	Return *model.SignedMessage `json:"return"`
}

// TransactionRequestResponse is the UI decision on a transaction request.
type TransactionRequestResponse struct {
	TxID          string                   `json:"txID"`
	Approved      bool                     `json:"approved"`
	TxResult      *model.TransactionResult `json:"txResult,omitempty"`
	TxResultError string                   `json:"txResultError,omitempty"`
}

type GetTransactionRequests struct{}

type GetTransactionRequestsResponse struct {
	TxRequests []broker.TransactionRequest `json:"txRequests"`
}

type ExecuteInscriptionRequest struct {
	Inscription model.Inscription `json:"inscription"`
}

type ExecuteInscriptionResponse struct {
	Result []string `json:"result"`
}

// InscriptionRequestResponse is the UI decision on an inscription request.
type InscriptionRequestResponse struct {
	InscID          string   `json:"inscID"`
	Approved        bool     `json:"approved"`
	InscResult      []string `json:"inscResult,omitempty"`
	InscResultError string   `json:"inscResultError,omitempty"`
}

type GetInscriptionRequests struct{}

type GetInscriptionRequestsResponse struct {
	InscRequests []broker.InscriptionRequest `json:"inscRequests"`
}

type GetNetwork struct{}

// SetNetwork selects the node environment. It is also the response to
// GetNetwork and SetNetwork, carrying the resolved environment.
type SetNetwork struct {
	Network network.Active `json:"network"`
}

// Done acknowledges a request without a return value.
type Done struct{}

// ErrorPayload reports a failed request.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

func (KeyringRequest) payloadType() string                 { return "keyring" }
func (KeyringResponse) payloadType() string                { return "keyring" }
func (ExecuteTransactionRequest) payloadType() string      { return "execute-transaction-request" }
func (ExecuteTransactionResponse) payloadType() string     { return "execute-transaction-response" }
func (SignMessageRequest) payloadType() string             { return "sign-message-request" }
func (SignMessageResponse) payloadType() string            { return "sign-message-response" }
func (TransactionRequestResponse) payloadType() string     { return "transaction-request-response" }
func (GetTransactionRequests) payloadType() string         { return "get-transaction-requests" }
func (GetTransactionRequestsResponse) payloadType() string { return "get-transaction-requests-response" }
func (ExecuteInscriptionRequest) payloadType() string      { return "execute-inscription-request" }
func (ExecuteInscriptionResponse) payloadType() string     { return "execute-inscription-response" }
func (InscriptionRequestResponse) payloadType() string     { return "inscription-request-response" }
func (GetInscriptionRequests) payloadType() string         { return "get-inscription-requests" }
func (GetInscriptionRequestsResponse) payloadType() string { return "get-inscription-requests-response" }
func (GetNetwork) payloadType() string                     { return "get-network" }
func (SetNetwork) payloadType() string                     { return "set-network" }
func (Done) payloadType() string                           { return "done" }
func (ErrorPayload) payloadType() string                   { return "error" }

// requestTypes are the variants a Message may be decoded into.
var requestTypes = map[string]func(json.RawMessage) (Payload, error){
	"keyring":                      decodeAs[KeyringRequest],
	"execute-transaction-request":  decodeAs[ExecuteTransactionRequest],
	"sign-message-request":         decodeAs[SignMessageRequest],
	"transaction-request-response": decodeAs[TransactionRequestResponse],
	"get-transaction-requests":     decodeAs[GetTransactionRequests],
	"execute-inscription-request":  decodeAs[ExecuteInscriptionRequest],
	"inscription-request-response": decodeAs[InscriptionRequestResponse],
	"get-inscription-requests":     decodeAs[GetInscriptionRequests],
	"get-network":                  decodeAs[GetNetwork],
	"set-network":                  decodeAs[SetNetwork],
}

func decodeAs[T Payload](raw json.RawMessage) (Payload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

type envelope struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON writes the payload with its "type" field.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.Payload == nil {
		return nil, fmt.Errorf("message %s has no payload", m.ID)
	}
	body, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"], _ = json.Marshal(m.Payload.payloadType())

	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{ID: m.ID, Payload: payload})
}

// UnmarshalJSON decodes request variants by their "type" field.
func (m *Message) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(env.Payload, &probe); err != nil {
		return fmt.Errorf("%w: payload: %v", model.ErrValidation, err)
	}
	decode, ok := requestTypes[probe.Type]
	if !ok {
		return fmt.Errorf("%w: unknown payload type %q", model.ErrValidation, probe.Type)
	}
	p, err := decode(env.Payload)
	if err != nil {
		return fmt.Errorf("%w: %s payload: %v", model.ErrValidation, probe.Type, err)
	}
	m.ID = env.ID
	m.Payload = p
	return nil
}
