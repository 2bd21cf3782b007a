package worker

import (
	"context"
	"time"

	"github.com/mhkaycey/wallet-service/config"
	"github.com/mhkaycey/wallet-service/internal/core/ports"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const sweepTimeout = 2 * time.Minute

// Sweeper periodically re-verifies stale PENDING deposits against the
// payment gateway. It covers the window where a webhook delivery was lost:
// the gateway's verify endpoint is the same source of truth the webhook
// reports from, and settlement goes through the same idempotent path.
type Sweeper struct {
	txRepo     ports.TransactionRepository
	gateway    ports.PaymentGateway
	webhookSvc ports.WebhookService
	cfg        config.SweeperConfig
	cron       *cron.Cron
	log        zerolog.Logger
}

// NewSweeper creates a new Sweeper.
func NewSweeper(
	txRepo ports.TransactionRepository,
	gateway ports.PaymentGateway,
	webhookSvc ports.WebhookService,
	cfg config.SweeperConfig,
	log zerolog.Logger,
) *Sweeper {
	sweepLog := log.With().Str("component", "sweeper").Logger()
	cronLogger := cron.PrintfLogger(&sweepLog)
	return &Sweeper{
		txRepo:     txRepo,
		gateway:    gateway,
		webhookSvc: webhookSvc,
		cfg:        cfg,
		cron:       cron.New(cron.WithChain(cron.Recover(cronLogger))),
		log:        sweepLog,
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("schedule", s.cfg.Schedule).Msg("pending-deposit sweeper started")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep verifies one batch of stale pending deposits.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.Cutoff)
	stale, err := s.txRepo.ListStalePendingDeposits(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("listing stale pending deposits")
		return
	}
	if len(stale) == 0 {
		return
	}

	s.log.Info().Int("count", len(stale)).Msg("verifying stale pending deposits")

	for _, txn := range stale {
		if err := s.verifyOne(ctx, txn.Reference); err != nil {
			s.log.Warn().Err(err).Str("reference", txn.Reference).Msg("deposit verification failed")
		}
	}
}

func (s *Sweeper) verifyOne(ctx context.Context, reference string) error {
	result, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return err
	}

	switch result.Status {
	case "success":
		_, err = s.webhookSvc.SettleDeposit(ctx, reference, true, result.AmountMinor)
	case "failed", "abandoned", "reversed":
		_, err = s.webhookSvc.SettleDeposit(ctx, reference, false, result.AmountMinor)
	default:
		// Still pending at the gateway; leave it for the next sweep.
		s.log.Debug().Str("reference", reference).Str("status", result.Status).Msg("deposit still pending at gateway")
	}
	return err
}
