package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Dispatcher sends receipts in the background so a slow mail provider never
// holds up a committed payment.
type Dispatcher struct {
	Notifier Notifier
	Timeout  time.Duration

	wg sync.WaitGroup
}

func NewDispatcher(n Notifier, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{Notifier: n, Timeout: timeout}
}

// Dispatch queues r. Failures are logged and dropped.
func (d *Dispatcher) Dispatch(r PaymentReceipt) {
	if d == nil || d.Notifier == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
		defer cancel()
		if err := d.Notifier.SendPaymentReceipt(ctx, r); err != nil {
			log.Warn().Err(err).Uint("purchase_id", r.PurchaseID).Uint("payment_id", r.PaymentID).
				Msg("payment receipt not sent")
		}
	}()
}

// Wait blocks until every dispatched receipt has finished.
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}
