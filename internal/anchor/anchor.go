// Package anchor periodically publishes the issuer's trust commitments (key
// thumbprint and revocation root) to the bulletin contract. It is an
// eventually-consistent side channel: failures are retried next cycle and
// never block issuance or verification.
package anchor

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"agetoken/internal/issuer"
	"agetoken/internal/ledger"
	"agetoken/internal/platform/metrics"
	"agetoken/internal/revocation"
	dErrors "agetoken/pkg/domain-errors"
)

// Runner drives the anchor cycles.
type Runner struct {
	keys     issuer.KeyProvider
	acc      *revocation.Accumulator
	bulletin ledger.Bulletin
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	kick chan struct{}

	// Last successfully published values; nil until something was published
	// or read back from the ledger.
	mu             sync.Mutex
	lastThumbprint *[32]byte
	lastRoot       *[32]byte
}

const (
	defaultInterval = time.Minute
	defaultTimeout  = 30 * time.Second
)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the anchor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithMetrics enables anchor metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithInterval sets the cycle interval.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithTimeout bounds each cycle's ledger interaction.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRunner constructs an anchor runner.
func NewRunner(keys issuer.KeyProvider, acc *revocation.Accumulator, bulletin ledger.Bulletin, opts ...Option) (*Runner, error) {
	if keys == nil || acc == nil || bulletin == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "anchor requires keys, accumulator, and a bulletin client")
	}
	r := &Runner{
		keys:     keys,
		acc:      acc,
		bulletin: bulletin,
		interval: defaultInterval,
		timeout:  defaultTimeout,
		kick:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

// Kick requests an early anchor cycle without blocking. Used after a revoke
// so the new root reaches the ledger before the next scheduled tick.
func (r *Runner) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run executes anchor cycles until ctx is cancelled. It first seeds the
// last-published state from the ledger (best effort) to avoid re-publishing
// unchanged values after a restart.
func (r *Runner) Run(ctx context.Context) error {
	r.seed(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-r.kick:
		}
		if err := r.RunOnce(ctx); err != nil {
			// Logged inside; retried next cycle.
			continue
		}
	}
}

// seed reads the currently published commitments so a restarted issuer does
// not resubmit identical transactions.
func (r *Runner) seed(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	thumbprint, err := r.bulletin.Thumbprint(cctx)
	if err != nil {
		r.logger.WarnContext(ctx, "could not read published thumbprint", "error", err)
		return
	}
	root, err := r.bulletin.RevocationRoot(cctx)
	if err != nil {
		r.logger.WarnContext(ctx, "could not read published revocation root", "error", err)
		return
	}

	r.mu.Lock()
	r.lastThumbprint = &thumbprint
	r.lastRoot = &root
	r.mu.Unlock()
}

// RunOnce performs a single anchor cycle: publish the issuer thumbprint and
// the revocation root when either differs from the last published value. An
// empty revoked set publishes no root transaction. The accumulator root is
// read as a snapshot before any ledger call, so no lock is held while waiting
// for the ledger.
func (r *Runner) RunOnce(ctx context.Context) error {
	thumbprint := r.keys.Thumbprint()
	revokedCount := r.acc.Len()
	root := r.acc.CurrentRoot()

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	published := false

	if r.needsThumbprint(thumbprint) {
		txHash, err := r.bulletin.SetThumbprint(cctx, thumbprint)
		if err != nil {
			return r.fail(ctx, "thumbprint publication failed", err)
		}
		r.setLastThumbprint(thumbprint)
		published = true
		r.logger.InfoContext(ctx, "issuer thumbprint anchored",
			"thumbprint", hex.EncodeToString(thumbprint[:]),
			"tx_hash", txHash,
		)
	}

	// Skip the root entirely while nothing is revoked.
	if revokedCount > 0 && r.needsRoot(root) {
		txHash, err := r.bulletin.SetRevocationRoot(cctx, root)
		if err != nil {
			return r.fail(ctx, "revocation root publication failed", err)
		}
		r.setLastRoot(root)
		published = true
		r.logger.InfoContext(ctx, "revocation root anchored",
			"root", hex.EncodeToString(root[:]),
			"revoked_count", revokedCount,
			"tx_hash", txHash,
		)
	}

	if published {
		r.metrics.IncrementAnchorRuns("published")
	} else {
		r.metrics.IncrementAnchorRuns("skipped")
	}
	return nil
}

func (r *Runner) needsThumbprint(current [32]byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastThumbprint == nil || *r.lastThumbprint != current
}

func (r *Runner) needsRoot(current [32]byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRoot == nil || *r.lastRoot != current
}

func (r *Runner) setLastThumbprint(v [32]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastThumbprint = &v
}

func (r *Runner) setLastRoot(v [32]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRoot = &v
}

func (r *Runner) fail(ctx context.Context, msg string, err error) error {
	r.metrics.IncrementAnchorRuns("failed")
	r.logger.ErrorContext(ctx, msg, "error", err)
	return dErrors.Wrap(err, dErrors.CodeLedgerUnavailable, msg)
}
