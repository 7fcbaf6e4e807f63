package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AlexZinkM/xdaghub/internal/chunk"
	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/store"

	"github.com/lightningnetwork/lnd/clock"
)

// InscriptionRoute is the approval surface route of inscriptions.
const InscriptionRoute = "/dapp/approveInscription/"

type (
	InscriptionRequest  = Request[model.InscriptionRequestPayload, []string]
	InscriptionDecision = Decision[[]string]
)

// Inscriptions brokers inscription requests and allocates their group tags.
type Inscriptions struct {
	*Broker[model.InscriptionRequestPayload, []string]

	store   store.Store
	indexMu sync.Mutex
}

// NewInscriptions creates the inscription broker.
func NewInscriptions(st store.Store, opener SurfaceOpener, clk clock.Clock) *Inscriptions {
	return &Inscriptions{
		Broker: New[model.InscriptionRequestPayload, []string](Config{
			StoreKey: store.KeyInscriptions,
			Route:    InscriptionRoute,
		}, st, opener, clk),
		store: st,
	}
}

type imageNumber struct {
	N1 byte `json:"n1"`
	N0 byte `json:"n0"`
}

// NextImageIndex returns the next group tag and persists the advanced counter.
// After the last tag it starts over.
func (i *Inscriptions) NextImageIndex(ctx context.Context) (string, error) {
	i.indexMu.Lock()
	defer i.indexMu.Unlock()

	counter := chunk.NewCounter()
	var stored imageNumber
	ok, err := i.store.Get(ctx, store.KeyInscriptionImageNo, &stored)
	if err != nil {
		return "", err
	}
	if ok {
		if counter, err = chunk.CounterAt(stored.N1, stored.N0); err != nil {
			log.Warnw("resetting corrupt image counter", "error", err)
			counter = chunk.NewCounter()
		}
	}

	tag := counter.String()
	counter.NextWrap()
	hi, lo := counter.Current()
	if err := i.store.Set(ctx, store.KeyInscriptionImageNo, imageNumber{N1: hi, N0: lo}); err != nil {
		return "", err
	}
	return tag, nil
}

// ExecuteInscription asks the user to approve an inscription and returns the
// addresses of the fragment transactions.
func (i *Inscriptions) ExecuteInscription(ctx context.Context, insc model.Inscription, origin, favIcon string) ([]string, error) {
	tag, err := i.NextImageIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate image index: %w", err)
	}
	req, err := i.Request(ctx, model.InscriptionRequestPayload{Inscription: insc, ImageIndex: tag}, origin, favIcon)
	if err != nil {
		return nil, err
	}
	if req.ResultError != "" {
		return nil, fmt.Errorf("transaction failed with the following error. %s: %w", req.ResultError, model.ErrSubmission)
	}
	if req.Result == nil {
		return nil, errors.New("transaction result is empty")
	}
	return *req.Result, nil
}
