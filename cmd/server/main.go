package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/book-order/internal/adapter/handler"
	"github.com/rl1809/book-order/internal/adapter/messaging"
	"github.com/rl1809/book-order/internal/adapter/storage"
	"github.com/rl1809/book-order/internal/config"
	"github.com/rl1809/book-order/internal/core/service"
	"github.com/rl1809/book-order/internal/platform/logger"
	"github.com/rl1809/book-order/internal/platform/observability"
	"github.com/rl1809/book-order/internal/port"
	"github.com/rl1809/book-order/internal/worker"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("BOOKORDER_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

// backend is the storage side chosen by config.
type backend struct {
	books     port.BookRepository
	inventory port.InventoryRepository
	orders    port.OrderRepository
	events    port.EventPublisher
	uow       port.UnitOfWork
	outbox    *worker.OutboxProcessor
	close     func() error
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = storage.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
		if err != nil {
			return err
		}
		defer rdb.Close()
		log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	broker, err := messaging.New(cfg.Broker, rdb, log)
	if err != nil {
		return fmt.Errorf("init broker: %w", err)
	}
	defer broker.Close()
	log.Info("event broker ready", zap.String("kind", cfg.Broker.Kind))

	var idempotency port.IdempotencyStore
	if rdb != nil {
		idempotency = storage.NewRedisIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL)
	} else {
		idempotency = storage.NewMemoryIdempotencyStore(cfg.Redis.IdempotencyTTL)
	}

	be, err := openBackend(ctx, cfg, broker, log)
	if err != nil {
		return err
	}
	defer be.close()

	books := service.NewBookService(be.books, be.uow, log)
	inventory := service.NewInventoryService(be.inventory, be.events, be.uow, cfg.LowStockThreshold, log)
	orders := service.NewOrderService(books, inventory, be.orders, be.events, be.uow, storage.UUIDGenerator{}, log)

	if cfg.Seed {
		if err := seedCatalog(ctx, books, inventory, log); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}

	if cfg.LogMode == "prod" || cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewRouter(handler.NewHTTPHandler(orders, books, inventory, idempotency, log)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	handler.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(orders, log))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	if be.outbox != nil {
		g.Go(func() error {
			be.outbox.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(sctx); err != nil {
			log.Warn("HTTP shutdown", zap.Error(err))
		}
		grpcServer.GracefulStop()
		log.Info("servers stopped")
		return nil
	})

	return g.Wait()
}

func openBackend(ctx context.Context, cfg *config.Config, broker port.MessagePublisher, log *zap.Logger) (*backend, error) {
	if cfg.Storage.Driver == "memory" {
		store := storage.NewMemoryStore(broker, log)
		log.Info("using in-memory storage")
		return &backend{
			books:     store.Books(),
			inventory: store.Inventory(),
			orders:    store.Orders(),
			events:    store,
			uow:       store,
			close:     func() error { return nil },
		}, nil
	}

	dialect, err := storage.ParseDialect(cfg.Storage.Driver)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(ctx, dialect, cfg.Storage.DSN, storage.PoolOptions{
		MaxOpenConns:    cfg.Storage.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	store := storage.NewSQLStore(db, dialect, log)
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	log.Info("connected to database", zap.String("dialect", string(dialect)))

	outbox := store.Outbox()
	return &backend{
		books:     store.Books(),
		inventory: store.Inventory(),
		orders:    store.Orders(),
		events:    outbox,
		uow:       store,
		outbox:    worker.NewOutboxProcessor(outbox, broker, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, log),
		close:     store.Close,
	}, nil
}
