package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"covenant/internal/deduction"
	"covenant/internal/identity"
	"covenant/internal/identity/agreement"
	"covenant/internal/identity/device"
	"covenant/internal/identity/guard"
	jwttoken "covenant/internal/jwt_token"
	"covenant/internal/ledger"
	ledgermem "covenant/internal/ledger/store/memory"
	ledgerpg "covenant/internal/ledger/store/postgres"
	"covenant/internal/platform/config"
	"covenant/internal/platform/database"
	"covenant/internal/platform/health"
	"covenant/internal/platform/httpserver"
	"covenant/internal/platform/kafka/admin"
	"covenant/internal/platform/kafka/producer"
	"covenant/internal/platform/logger"
	"covenant/internal/platform/metrics"
	"covenant/internal/platform/middleware"
	platformotel "covenant/internal/platform/otel"
	"covenant/internal/platform/redis"
	"covenant/internal/reconcile"
	"covenant/internal/seigniorage"
	httptransport "covenant/internal/transport/http"
	"covenant/internal/treasury"
	"covenant/internal/verifier"
	"covenant/internal/vesting"
	"covenant/internal/vesting/cache"
	"covenant/internal/vesting/release"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/middleware/metadata"
	request "covenant/pkg/platform/middleware/request"
	"covenant/pkg/platform/middleware/requesttime"
	"covenant/pkg/platform/outbox"
	outboxmetrics "covenant/pkg/platform/outbox/metrics"
	outboxmem "covenant/pkg/platform/outbox/store/memory"
	outboxpg "covenant/pkg/platform/outbox/store/postgres"
	"covenant/pkg/platform/outbox/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("covenant exited with error", "error", err)
		os.Exit(1)
	}
}

// infra holds the process-wide resources that need closing on shutdown.
type infra struct {
	store  ledger.Store
	events outbox.Store
	closer []func() error
}

func (i *infra) close(log *slog.Logger) {
	for n := len(i.closer) - 1; n >= 0; n-- {
		if err := i.closer[n](); err != nil {
			log.Warn("close failed", "error", err)
		}
	}
}

func openStore(cfg config.Config, checks *health.Handler, log *slog.Logger) (*infra, error) {
	if cfg.Server.StoreBackend == "memory" {
		log.Warn("using in-memory ledger store; balances are lost on restart")
		events := outboxmem.New()
		return &infra{store: ledgermem.New(events), events: events}, nil
	}

	pool, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	checks.RegisterCheck("postgres", pool.Health)

	events := outboxpg.New(pool.DB())
	store := ledgerpg.New(pool.DB(), events).WithTxTimeout(cfg.Database.TxTimeout)
	return &infra{store: store, events: events, closer: []func() error{pool.Close}}, nil
}

func openPublisher(ctx context.Context, cfg config.Kafka, checks *health.Handler, log *slog.Logger) (worker.Publisher, func() error, error) {
	if cfg.Brokers == "" {
		log.Warn("kafka not configured; ledger events stay in the outbox")
		return producer.NoopProducer{}, func() error { return nil }, nil
	}
	p, err := producer.New(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}
	if err := admin.EnsureTopic(ctx, p.Client(), cfg.LedgerTopic, cfg.Partitions, cfg.ReplicationFactor); err != nil {
		p.Close() //nolint:errcheck
		return nil, nil, fmt.Errorf("ensure ledger topic: %w", err)
	}
	checks.RegisterCheck("kafka", p.Healthy)
	return p, p.Close, nil
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	otelShutdown, err := platformotel.Setup(ctx, cfg.Otel)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	reg := metrics.New(health.Version, cfg.Server.Environment)
	healthHandler := health.New(cfg.Server.Environment)

	res, err := openStore(cfg, healthHandler, log)
	if err != nil {
		return err
	}
	defer res.close(log)

	publisher, closePublisher, err := openPublisher(ctx, cfg.Kafka, healthHandler, log)
	if err != nil {
		return err
	}
	res.closer = append(res.closer, closePublisher)

	outboxWorker := worker.New(res.events, publisher,
		worker.WithTopic(cfg.Kafka.LedgerTopic),
		worker.WithBatchSize(cfg.Kafka.OutboxBatchSize),
		worker.WithPollInterval(cfg.Kafka.OutboxInterval),
		worker.WithRetention(cfg.Kafka.OutboxRetention),
		worker.WithMetrics(outboxmetrics.NewWith(reg.Registerer())),
		worker.WithLogger(log),
	)

	// Identity guard.
	g := guard.New(res.store, cfg.Guard.AnchorPepper,
		guard.WithLogger(log),
		guard.WithMetrics(guard.NewMetrics(reg.Registerer())),
	)
	devices := device.NewService(true)
	identities := identity.New(res.store, g, devices, identity.WithLogger(log))
	agreements := agreement.New(res.store, devices, log)

	// Minting engine.
	schedule, err := ledger.ScheduleByName(cfg.Mint.Schedule)
	if err != nil {
		return err
	}
	minter, err := seigniorage.New(res.store, g, seigniorage.Config{
		Schedule:            schedule,
		AgreementVersion:    id.AgreementVersion(cfg.Mint.AgreementVersion),
		PersonhoodThreshold: cfg.Mint.PersonhoodThreshold,
		ActivationDebit:     cfg.Mint.ActivationDebit,
		VestingTarget:       cfg.Vesting.Target,
	}, seigniorage.WithLogger(log), seigniorage.WithMetrics(seigniorage.NewMetrics(reg.Registerer())))
	if err != nil {
		return fmt.Errorf("configure minting: %w", err)
	}

	// Vesting ledger.
	policy, err := vesting.ParsePolicy(cfg.Vesting.Policy)
	if err != nil {
		return err
	}
	vestingMetrics := vesting.NewMetrics(reg.Registerer())
	verifierClient := verifier.New(cfg.Verifier,
		verifier.WithLogger(log),
		verifier.WithMetrics(verifier.NewMetrics(reg.Registerer())),
	)
	vestingOpts := []vesting.Option{
		vesting.WithPolicy(policy),
		vesting.WithTarget(cfg.Vesting.Target),
		vesting.WithMinScore(cfg.Verifier.MinScore),
		vesting.WithMetrics(vestingMetrics),
		vesting.WithLogger(log),
	}
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		healthHandler.RegisterOptional("redis", redisClient.Health)
		res.closer = append(res.closer, redisClient.Close)
		vestingOpts = append(vestingOpts, vesting.WithCache(cache.NewRedisCache(redisClient, cfg.Redis.VestingCacheTTL)))
	}
	vestingSvc := vesting.New(res.store, verifierClient, vestingOpts...)

	releaseJob := release.New(res.store, minter, cfg.Mint.ReleaseThreshold,
		release.WithInterval(cfg.Jobs.ReleaseInterval),
		release.WithInvalidator(vestingSvc),
		release.WithMetrics(vestingMetrics),
		release.WithLogger(log),
	)
	reconcileJob := reconcile.New(res.store, cfg.Jobs.ReservationStaleAt,
		reconcile.WithInterval(cfg.Jobs.ReconcileInterval),
		reconcile.WithMetrics(reconcile.NewMetrics(reg.Registerer())),
		reconcile.WithLogger(log),
	)

	// Revenue deduction engine.
	deductions, err := deduction.New(res.store, deduction.Config{
		Rates: deduction.Rates{
			Corporate: cfg.Deduction.CorporateRate,
			National:  cfg.Deduction.NationalRate,
		},
		ConversionLevyRate: cfg.Deduction.ConversionLevyRate,
		SovereigntyFee:     cfg.Deduction.SovereigntyFee,
	}, deduction.WithLogger(log), deduction.WithMetrics(deduction.NewMetrics(reg.Registerer())))
	if err != nil {
		return fmt.Errorf("configure deductions: %w", err)
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(request.Logger(log))
	r.Use(request.Latency(request.NewMetrics(reg.Registerer())))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)

	healthHandler.Register(r)
	r.Handle("/metrics", reg.Handler())

	jwtSvc := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.TokenIssuer, cfg.Server.TokenAudience)
	r.Group(func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		httptransport.New(httptransport.Services{
			Identities:  identities,
			Agreements:  agreements,
			Mint:        minter,
			Vesting:     vestingSvc,
			Deductions:  deductions,
			Distributor: deduction.NewDistributor(log),
			Treasury:    treasury.New(res.store),
		}, id.AgreementVersion(cfg.Mint.AgreementVersion), log).
			Register(r, middleware.RequireOperator(jwtSvc, log))
	})

	srv := httpserver.New(cfg.Server.Addr, r)

	outboxWorker.Start()

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		log.Info("covenant listening", "addr", cfg.Server.Addr, "env", cfg.Server.Environment,
			"store", cfg.Server.StoreBackend, "schedule", schedule.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	grp.Go(func() error { return releaseJob.Start(gctx) })
	grp.Go(func() error { return reconcileJob.Start(gctx) })
	grp.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		if err := srv.Shutdown(sctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := outboxWorker.Stop(sctx); err != nil {
			errs = append(errs, fmt.Errorf("outbox worker stop: %w", err))
		}
		return errors.Join(errs...)
	})

	return grp.Wait()
}
