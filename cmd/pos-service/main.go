package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cartapp "github.com/dmehra2102/pos-order-engine/internal/cart/application"
	catalogapp "github.com/dmehra2102/pos-order-engine/internal/catalog/application"
	catalogkafka "github.com/dmehra2102/pos-order-engine/internal/catalog/infrastructure/kafka"
	catalogpg "github.com/dmehra2102/pos-order-engine/internal/catalog/infrastructure/postgres"
	catalogredis "github.com/dmehra2102/pos-order-engine/internal/catalog/infrastructure/redis"
	"github.com/dmehra2102/pos-order-engine/internal/catalog/infrastructure/ws"
	"github.com/dmehra2102/pos-order-engine/internal/config"
	invapp "github.com/dmehra2102/pos-order-engine/internal/inventory/application"
	invgrpc "github.com/dmehra2102/pos-order-engine/internal/inventory/infrastructure/grpc"
	invmemory "github.com/dmehra2102/pos-order-engine/internal/inventory/infrastructure/memory"
	invpg "github.com/dmehra2102/pos-order-engine/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/pos-order-engine/internal/order/application"
	"github.com/dmehra2102/pos-order-engine/internal/order/domain"
	ordergrpc "github.com/dmehra2102/pos-order-engine/internal/order/infrastructure/grpc"
	orderhttp "github.com/dmehra2102/pos-order-engine/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/pos-order-engine/internal/order/infrastructure/kafka"
	ordermemory "github.com/dmehra2102/pos-order-engine/internal/order/infrastructure/memory"
	orderpg "github.com/dmehra2102/pos-order-engine/internal/order/infrastructure/postgres"
	platform "github.com/dmehra2102/pos-order-engine/internal/platform/postgres"
	"github.com/dmehra2102/pos-order-engine/pkg/idempotency"
	"github.com/dmehra2102/pos-order-engine/pkg/logging"
	"github.com/dmehra2102/pos-order-engine/pkg/outbox"
	"github.com/dmehra2102/pos-order-engine/pkg/retry"
	"github.com/dmehra2102/pos-order-engine/pkg/shutdown"
	"github.com/dmehra2102/pos-order-engine/pkg/tracing"
)

const serviceName = "pos-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(2)
	}
	log := logging.New(serviceName, cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("pos-service stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("pos-service shutdown complete")
}

// stores is the storage side of the service, chosen by STORE.
type stores struct {
	ledger   invapp.Ledger
	orders   application.OrderStore
	products cartapp.Products
	listing  catalogapp.Repository
	ready    func(context.Context) error
	// background workers that only exist with Postgres, Kafka or Redis
	workers []func(context.Context) error
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var closers shutdown.Closers
	defer func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer ccancel()
		for _, err := range closers.Close(cctx) {
			log.Warn("close failed", "err", err)
		}
	}()

	tp, err := tracing.Init(ctx, serviceName, cfg.OTELEndpoint, log)
	if err != nil {
		return fmt.Errorf("otel init: %w", err)
	}
	closers.Add(tp.Shutdown)

	// Redis
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closers.Add(func(context.Context) error { return rdb.Close() })
	}

	hub := ws.NewHub(log)
	var cache catalogapp.Cache
	if rdb != nil {
		cache = catalogredis.NewCache(rdb, cfg.CatalogCacheTTL)
	}

	st, err := openStores(ctx, cfg, log, &closers)
	if err != nil {
		return err
	}

	catalog := catalogapp.NewService(log, st.listing, cache, hub)
	stock := invapp.NewService(log, st.ledger, retry.DefaultPolicy(cfg.LedgerAttempts), cfg.LowStockThreshold)
	sessions := cartapp.NewSessions(log, st.products, cfg.TaxRate)
	processor := application.NewProcessor(log, stock, st.orders, domain.TimestampNumbers{}, catalog, application.Config{
		Timeout:             cfg.CheckoutTimeout,
		CompensationTimeout: 2 * cfg.CheckoutTimeout,
		NumberAttempts:      cfg.OrderNumberAttempts,
	})
	till := application.NewTill(sessions, st.products, cfg.TaxRate, processor)

	opts := []orderhttp.Option{orderhttp.WithCatalogFeed(hub), orderhttp.WithReadiness(st.ready)}
	var dedupe catalogkafka.Deduper
	if rdb != nil {
		idem := idempotency.NewStore(rdb, cfg.IdempotencyTTL)
		opts = append(opts, orderhttp.WithIdempotency(idem))
		dedupe = idem
	}
	handler := orderhttp.NewHandler(log, catalog, stock, sessions, till, opts...)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.CheckoutTimeout + 10*time.Second,
	}

	gs := grpc.NewServer()
	invgrpc.NewServer(log, stock, catalog).Register(gs)
	ordergrpc.NewServer(log, till).Register(gs)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(invgrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ordergrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if cfg.Store == config.StorePostgres && len(cfg.KafkaBrokers) > 0 {
		consumer := catalogkafka.NewConsumer(log, catalogkafka.NewReader(cfg.KafkaBrokers, cfg.EventsTopic, serviceName+"-catalog-"+uuid.NewString()), catalog, dedupe)
		st.workers = append(st.workers, consumer.Run)
	}
	for _, w := range st.workers {
		g.Go(func() error { return w(gctx) })
	}
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("grpc listening", "addr", cfg.GRPCAddr)
		return gs.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		hs.Shutdown()
		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		err := srv.Shutdown(sctx)
		gs.GracefulStop()
		return err
	})
	return g.Wait()
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger, closers *shutdown.Closers) (stores, error) {
	if cfg.Store == config.StoreMemory {
		ledger := invmemory.NewLedger()
		if cfg.SeedFile != "" {
			products, err := invmemory.LoadSeed(cfg.SeedFile)
			if err != nil {
				return stores{}, err
			}
			for _, p := range products {
				ledger.Put(p)
			}
			log.Info("memory ledger seeded", "products", len(products), "file", cfg.SeedFile)
		}
		return stores{
			ledger:   ledger,
			orders:   ordermemory.NewStore(),
			products: ledger,
			listing:  ledger,
			ready:    func(context.Context) error { return nil },
		}, nil
	}

	pool, err := platform.New(ctx, cfg.PGURL)
	if err != nil {
		return stores{}, fmt.Errorf("postgres: %w", err)
	}
	closers.Add(func(context.Context) error { pool.Close(); return nil })
	if err := platform.Migrate(ctx, pool); err != nil {
		return stores{}, err
	}

	products := catalogpg.NewRepository(log, pool)
	st := stores{
		ledger:   invpg.NewLedger(log, pool, cfg.LockTimeout, cfg.LowStockThreshold),
		orders:   orderpg.NewRepository(log, pool),
		products: products,
		listing:  products,
		ready:    pool.Ping,
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := orderkafka.NewWriter(cfg.KafkaBrokers)
		closers.Add(func(context.Context) error { return writer.Close() })
		dispatch := outbox.NewDispatcher(log, writer, cfg.EventsTopic)
		relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool), dispatch, serviceName+"-relay-"+uuid.NewString()[:8])
		st.workers = append(st.workers, relay.Run)
	} else {
		log.Warn("KAFKA_ADDR not set, outbox events stay pending")
	}
	return st, nil
}
