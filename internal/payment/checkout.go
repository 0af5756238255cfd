// internal/payment/checkout.go
package payment

import (
	"context"
	"sync"

	"referralbridge/internal/models"
)

// OutcomeKind enumerates the three ways a checkout ends. Exactly one outcome
// is delivered per checkout.
type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeDismissed OutcomeKind = "dismissed"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome is what the browser-side checkout reported back.
type Outcome struct {
	Kind     OutcomeKind
	Callback *models.PaymentCallback // set iff Kind == OutcomeCompleted
	Reason   string                  // provider failure reason, iff Kind == OutcomeFailed
}

// PendingCheckout is the suspension point between opening the provider
// checkout and its result event. Delivery is single-fire: a duplicate
// completion callback is dropped, which backs the exactly-once record
// guarantee.
type PendingCheckout struct {
	ch   chan Outcome
	once sync.Once
}

func NewPendingCheckout() *PendingCheckout {
	return &PendingCheckout{ch: make(chan Outcome, 1)}
}

// Deliver hands the outcome to the waiting workflow. Returns false when an
// outcome was already delivered.
func (p *PendingCheckout) Deliver(o Outcome) bool {
	delivered := false
	p.once.Do(func() {
		p.ch <- o
		delivered = true
	})
	return delivered
}

// Cancel closes the suspension point without an outcome. A later Deliver
// returns false, so a straggling callback after a checkout timeout is dropped.
func (p *PendingCheckout) Cancel() {
	p.once.Do(func() {})
}

// TakeDelivered drains an outcome whose Deliver won against a concurrent
// Cancel. Call after Cancel returns: sync.Once guarantees a winning Deliver
// has finished its send by then, so a non-blocking receive is race-free.
func (p *PendingCheckout) TakeDelivered() (Outcome, bool) {
	select {
	case o := <-p.ch:
		return o, true
	default:
		return Outcome{}, false
	}
}

// Await blocks until the outcome arrives or ctx expires.
func (p *PendingCheckout) Await(ctx context.Context) (Outcome, error) {
	select {
	case o := <-p.ch:
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
