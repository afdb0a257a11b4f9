// Package reconcile sweeps payments stuck in PENDING and settles them
// against the gateway's view. Completion and failure are idempotent, so
// overlapping sweeps lose cleanly at the status guard instead of
// double-writing.
package reconcile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/supa-modo/mwukenya-server-sub002/internal/clock"
	obsmetrics "github.com/supa-modo/mwukenya-server-sub002/internal/observability/metrics"
	paymentdomain "github.com/supa-modo/mwukenya-server-sub002/internal/payment/domain"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	PaymentSvc paymentdomain.Service
	Locker     *Locker             `optional:"true"`
	Metrics    *obsmetrics.Metrics `optional:"true"`
	Config     Config              `optional:"true"`
}

type Worker struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	paymentSvc paymentdomain.Service
	locker     *Locker
	metrics    *obsmetrics.Metrics
}

var ErrInvalidConfig = errors.New("reconcile: missing dependencies")

func New(p Params) (*Worker, error) {
	if p.Log == nil || p.Clock == nil || p.PaymentSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Worker{
		log:        p.Log.Named("reconcile").With(zap.String("component", "reconcile")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		paymentSvc: p.PaymentSvc,
		locker:     p.Locker,
		metrics:    p.Metrics,
	}, nil
}

// RunOnce performs a single sweep. It claims the distributed lock when a
// locker is configured; losing the lock is a silent no-op.
func (w *Worker) RunOnce(ctx context.Context) error {
	if w.locker != nil {
		token, ok, err := w.locker.TryLock(ctx, w.cfg.LockKey, w.cfg.LockTTL)
		if err != nil {
			w.log.Warn("reconcile lock unavailable, skipping sweep", zap.Error(err))
			return nil
		}
		if !ok {
			return nil
		}
		defer func() {
			if err := w.locker.Release(ctx, w.cfg.LockKey, token); err != nil {
				w.log.Warn("reconcile lock release failed", zap.Error(err))
			}
		}()
	}
	return w.sweep(ctx)
}

func (w *Worker) sweep(ctx context.Context) error {
	var sweepErr error

	for {
		if ctx.Err() != nil {
			return errors.Join(sweepErr, ctx.Err())
		}

		records, err := w.paymentSvc.FindStalePending(ctx, w.cfg.StaleThreshold, w.cfg.BatchSize)
		if err != nil {
			return errors.Join(sweepErr, err)
		}
		if len(records) == 0 {
			return sweepErr
		}

		progressed := 0
		for _, record := range records {
			if ctx.Err() != nil {
				return errors.Join(sweepErr, ctx.Err())
			}
			settled, err := w.reconcileOne(ctx, record)
			if err != nil {
				sweepErr = errors.Join(sweepErr, err)
			}
			if settled {
				progressed++
			}
		}
		// Every remaining record is still in flight at the gateway;
		// another pass now would refetch the same batch.
		if progressed == 0 {
			return sweepErr
		}
	}
}

func (w *Worker) reconcileOne(ctx context.Context, record paymentdomain.PaymentRecord) (bool, error) {
	log := w.log.With(
		zap.String("payment_id", record.ID.String()),
		zap.String("reference", record.Reference),
	)

	status, err := w.paymentSvc.QueryGatewayStatus(ctx, record.ID)
	if err != nil {
		w.record("error")
		log.Warn("gateway status query failed", zap.Error(err))
		return false, err
	}

	if !status.IsComplete {
		w.record("pending")
		return false, nil
	}

	if status.IsSuccessful {
		if _, err := w.paymentSvc.Complete(ctx, record.ID, status.TransactionID, status.TransactionID); err != nil {
			w.record("error")
			log.Error("reconcile completion failed", zap.Error(err))
			return false, err
		}
		w.record("completed")
		log.Info("stale payment completed via reconcile")
		return true, nil
	}

	if err := w.paymentSvc.Fail(ctx, record.ID, status.Description); err != nil {
		w.record("error")
		log.Error("reconcile failure mark failed", zap.Error(err))
		return false, err
	}
	w.record("failed")
	log.Info("stale payment failed via reconcile", zap.String("reason", status.Description))
	return true, nil
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("reconcile sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) record(result string) {
	if w.metrics != nil {
		w.metrics.RecordReconcile(result)
	}
}
