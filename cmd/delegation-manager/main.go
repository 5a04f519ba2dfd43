package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/d-buzz/delegation-manager/manager"
	"github.com/d-buzz/delegation-manager/manager/config"
	"github.com/d-buzz/delegation-manager/pkg/clock"
	"github.com/d-buzz/delegation-manager/pkg/hive"
	"github.com/d-buzz/delegation-manager/pkg/hiveonboard"
	"github.com/d-buzz/delegation-manager/pkg/logger"
	"github.com/d-buzz/delegation-manager/policy"
	"github.com/d-buzz/delegation-manager/rc"
	"github.com/d-buzz/delegation-manager/registry"
)

func main() {
	// Load configuration
	cfg, err := config.New()
	if err != nil {
		slog.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize logger and set as default
	log := logger.NewFromConfig(logger.Config{
		LogLevel:         cfg.LogLevel,
		LogHumanFriendly: cfg.LogHumanFriendly,
	})
	slog.SetDefault(log)

	// Prepare context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Registry store
	store, err := registry.Open(cfg.UserDataFile)
	if err != nil {
		log.ErrorContext(ctx, "Failed to open user store", slog.Any("error", err))
		os.Exit(1)
	}

	// Hive node, wallet and referral feed clients
	httpClient := &http.Client{Timeout: cfg.HttpClientTimeout}
	node := hive.NewClientWithHTTP(httpClient, cfg.HiveAPIURL)
	wallet := hive.NewWalletWithHTTP(httpClient, cfg.WalletURL)
	feed := hiveonboard.NewClientWithHTTP(httpClient, cfg.HiveonboardAPIURL)

	// Cost estimator and policy evaluator
	sysClock := clock.SystemClock{}
	estimator := rc.NewEstimator(node, sysClock, rc.DefaultRefreshInterval)
	evaluator := policy.NewEvaluator(node, estimator, store, sysClock, policy.Config{
		MuteAccount:       cfg.MuteAccount,
		Referrer:          cfg.ReferrerAccount,
		MaxOwnedPower:     cfg.MaxOwnedPower,
		MinPostMultiplier: cfg.MinPostMultiplier,
		DelegationLength:  time.Duration(cfg.DelegationLengthDays) * 24 * time.Hour,
	})

	// Create manager service
	svc := manager.NewService(
		manager.Deps{
			Store:       store,
			Policy:      evaluator,
			Chain:       node,
			Broadcaster: wallet,
			Streamer:    node,
			Feed:        feed,
			Costs:       estimator,
		},
		manager.Settings{
			DelegationAccount:  cfg.DelegationAccount,
			AdminAccount:       cfg.AdminAccount,
			Referrer:           cfg.ReferrerAccount,
			DelegationAmount:   cfg.DelegationAmount,
			NotifyUsers:        cfg.NotifyUser,
			EnforceBeneficiary: cfg.BeneficiaryRemoval,
			PowerWarningFloor:  cfg.PowerWarningFloor,
		},
		manager.WithSweepInterval(time.Duration(cfg.CheckCycleMins)*time.Minute),
	)

	// Start service
	log.InfoContext(ctx, "Starting delegation manager",
		slog.String("delegationAccount", cfg.DelegationAccount),
		slog.String("referrer", cfg.ReferrerAccount),
		slog.Float64("delegationAmount", cfg.DelegationAmount),
		slog.Int("checkCycleMins", cfg.CheckCycleMins),
	)
	events, done := svc.Start(ctx)

	// Subscribe to events for logging
	subCloser := setupEventLogging(ctx, events, log)
	defer subCloser()

	// Wait for shutdown
	<-done
	log.InfoContext(ctx, "Delegation manager stopped")
}

// setupEventLogging configures event handlers using slog directly
func setupEventLogging(ctx context.Context, events <-chan manager.Event, log *slog.Logger) func() {
	return manager.NewSubscriber(events,
		manager.OnStarted(func(e manager.Started) {
			log.InfoContext(ctx, "Registry bootstrapped",
				slog.Int("feedAccounts", e.FeedAccounts),
				slog.Int("knownUsers", e.KnownUsers),
			)
		}),
		manager.OnBootstrapFailed(func(e manager.BootstrapFailed) {
			log.ErrorContext(ctx, "Bootstrap failed", slog.Any("error", e.Err))
		}),
		manager.OnUserRegistered(func(e manager.UserRegistered) {
			log.InfoContext(ctx, "Referred user registered",
				slog.String("account", e.Account),
				slog.Int("weight", e.Weight),
			)
		}),
		manager.OnDelegationGranted(func(e manager.DelegationGranted) {
			log.InfoContext(ctx, "Delegation granted",
				slog.String("account", e.Account),
				slog.Float64("amountHP", e.Amount),
			)
		}),
		manager.OnGrantFailed(func(e manager.GrantFailed) {
			log.ErrorContext(ctx, "Delegation grant failed",
				slog.String("account", e.Account),
				slog.Any("error", e.Err),
			)
		}),
		manager.OnDelegationRevoked(func(e manager.DelegationRevoked) {
			log.InfoContext(ctx, "Delegation revoked",
				slog.String("account", e.Account),
				slog.String("reason", string(e.Reason)),
			)
		}),
		manager.OnRevokeFailed(func(e manager.RevokeFailed) {
			log.ErrorContext(ctx, "Delegation revoke failed",
				slog.String("account", e.Account),
				slog.Any("error", e.Err),
			)
		}),
		manager.OnEvaluationError(func(e manager.EvaluationError) {
			log.WarnContext(ctx, "Account evaluation failed",
				slog.String("account", e.Account),
				slog.Any("error", e.Err),
			)
		}),
		manager.OnReconcileRepaired(func(e manager.ReconcileRepaired) {
			log.WarnContext(ctx, "Registry status repaired from chain",
				slog.String("account", e.Account),
			)
		}),
		manager.OnReconcileError(func(e manager.ReconcileError) {
			log.ErrorContext(ctx, "Delegation reconciliation failed", slog.Any("error", e.Err))
		}),
		manager.OnSweepCompleted(func(e manager.SweepCompleted) {
			log.InfoContext(ctx, "Sweep completed",
				slog.Int("checked", e.Checked),
				slog.Int("revoked", e.Revoked),
				slog.Duration("duration", e.Duration),
			)
		}),
		manager.OnPowerChecked(func(e manager.PowerChecked) {
			log.InfoContext(ctx, "Delegator power checked",
				slog.Float64("availableHP", e.AvailableHP),
			)
		}),
		manager.OnPowerLow(func(e manager.PowerLow) {
			log.WarnContext(ctx, "Delegatable power below floor",
				slog.Float64("availableHP", e.AvailableHP),
				slog.Float64("floor", e.Floor),
			)
		}),
		manager.OnPowerCheckError(func(e manager.PowerCheckError) {
			log.ErrorContext(ctx, "Delegator power check failed", slog.Any("error", e.Err))
		}),
		manager.OnRewardsClaimed(func(e manager.RewardsClaimed) {
			log.InfoContext(ctx, "Pending rewards claimed", slog.String("account", e.Account))
		}),
		manager.OnCostRefreshed(func(e manager.CostRefreshed) {
			log.InfoContext(ctx, "Comment RC cost refreshed", slog.Int64("cost", e.Cost))
		}),
		manager.OnCostRefreshError(func(e manager.CostRefreshError) {
			log.WarnContext(ctx, "Comment RC cost refresh failed", slog.Any("error", e.Err))
		}),
		manager.OnNotifyError(func(e manager.NotifyError) {
			log.WarnContext(ctx, "Notification failed",
				slog.String("account", e.Account),
				slog.Any("error", e.Err),
			)
		}),
		manager.OnStoreError(func(e manager.StoreError) {
			log.ErrorContext(ctx, "User store write failed", slog.Any("error", e.Err))
		}),
		manager.OnStreamStopped(func(e manager.StreamStopped) {
			log.InfoContext(ctx, "Operation stream stopped", slog.Any("reason", e.Reason))
		}),
		manager.OnShutdown(func(e manager.Shutdown) {
			log.InfoContext(ctx, "Monitoring stopped", slog.String("reason", e.Reason.Error()))
		}),
	)
}
