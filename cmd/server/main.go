// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"agetoken/internal/anchor"
	"agetoken/internal/attestation"
	"agetoken/internal/credential"
	"agetoken/internal/credential/store"
	"agetoken/internal/issuer"
	"agetoken/internal/ledger"
	"agetoken/internal/platform/config"
	"agetoken/internal/platform/health"
	"agetoken/internal/platform/logger"
	"agetoken/internal/platform/metrics"
	"agetoken/internal/revocation"
	httptransport "agetoken/internal/transport/http"
	"agetoken/internal/verifierauth"
	"agetoken/internal/verify"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing agetoken issuer",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"rp_id", cfg.RPID,
		"ledger_configured", cfg.LedgerConfigured(),
	)

	// Key material problems are fatal at startup, not at first request.
	keys, err := issuer.NewFileProvider(cfg.IssuerKeyFile)
	if err != nil {
		log.Error("issuer key unavailable", "error", err, "path", cfg.IssuerKeyFile)
		os.Exit(1)
	}

	mx := metrics.New()
	devices := store.NewInMemoryDeviceStore()
	revocations := revocation.New(
		revocation.WithLogger(log),
		revocation.WithMetrics(mx),
	)

	attest, err := attestation.NewService(attestation.Config{
		RPID:            cfg.RPID,
		RPDisplayName:   cfg.RPDisplayName,
		RPOrigins:       cfg.RPOrigins,
		RegistrationTTL: cfg.RegistrationChallengeTTL,
		AssertionTTL:    cfg.AssertionChallengeTTL,
	}, attestation.WithLogger(log), attestation.WithMetrics(mx))
	if err != nil {
		log.Error("attestation setup failed", "error", err)
		os.Exit(1)
	}
	defer attest.Close()

	minter, err := credential.NewMinter(keys, devices, cfg.AgeOver,
		credential.WithLogger(log),
		credential.WithMetrics(mx),
		credential.WithValidity(cfg.TokenValidity),
	)
	if err != nil {
		log.Error("minter setup failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var bulletin ledger.Bulletin
	var anchorRunner *anchor.Runner
	if cfg.LedgerConfigured() {
		bulletin, err = ledger.Dial(ctx, ledger.Config{
			RPCURL:          cfg.ChainRPCURL,
			ContractAddress: cfg.BulletinAddress,
			PrivateKeyHex:   cfg.LedgerPrivateKey,
			ChainID:         cfg.ChainID,
		})
		if err != nil {
			log.Error("ledger dial failed", "error", err)
			os.Exit(1)
		}
		anchorRunner, err = anchor.NewRunner(keys, revocations, bulletin,
			anchor.WithLogger(log),
			anchor.WithMetrics(mx),
			anchor.WithInterval(cfg.AnchorInterval),
			anchor.WithTimeout(cfg.AnchorTimeout),
		)
		if err != nil {
			log.Error("anchor setup failed", "error", err)
			os.Exit(1)
		}
	}

	verifyOpts := []verify.Option{
		verify.WithLogger(log),
		verify.WithMetrics(mx),
		verify.WithDeviceAsserter(attest),
	}
	if bulletin != nil {
		verifyOpts = append(verifyOpts, verify.WithBulletin(bulletin))
	}
	verifier, err := verify.NewService(keys, revocations, verifyOpts...)
	if err != nil {
		log.Error("verifier setup failed", "error", err)
		os.Exit(1)
	}

	verifierAuth, err := verifierauth.NewService(verifierauth.NewInMemoryStore(),
		verifierauth.WithLogger(log))
	if err != nil {
		log.Error("verifier auth setup failed", "error", err)
		os.Exit(1)
	}

	healthHandler := health.New(cfg.Environment)
	if bulletin != nil {
		// Informational only: an unreachable ledger degrades
		// trust-minimization but must not fail readiness.
		healthHandler.RegisterInfoCheck("ledger", func() error {
			cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := bulletin.Thumbprint(cctx)
			return err
		})
	}

	var kicker httptransport.AnchorKicker
	if anchorRunner != nil {
		kicker = anchorRunner
	}
	handler := httptransport.NewHandler(
		attest, minter, verifier, revocations, verifierAuth,
		keys, devices, kicker, cfg.Environment, log,
	)
	router := httptransport.NewRouter(handler, verifierAuth, cfg.AdminToken, healthHandler, mx, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if anchorRunner != nil {
		group.Go(func() error {
			if err := anchorRunner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	// Expired device records only matter for assertion lookups; a slow sweep
	// keeps the in-memory store bounded.
	group.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if removed, err := devices.DeleteExpired(ctx, time.Now()); err == nil && removed > 0 {
					log.Info("swept expired device records", "removed", removed)
				}
			}
		}
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
