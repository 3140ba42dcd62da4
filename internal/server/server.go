package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/emrgen/identity/internal/cache"
	"github.com/emrgen/identity/internal/config"
	"github.com/emrgen/identity/internal/jobs"
	"github.com/emrgen/identity/internal/queue"
	"github.com/emrgen/identity/internal/service"
	"github.com/emrgen/identity/internal/store"
	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 10 * time.Second

// Server represents the server
type Server struct {
	cfg *config.Config
}

// NewServer creates a new server
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Start runs the server until it receives SIGINT or SIGTERM.
func (s *Server) Start() error {
	return Start(s.cfg)
}

// NewIdentityService wires the resolver with the optional lock and event
// queue described by cfg. The returned func releases what was opened.
func NewIdentityService(cfg *config.Config, contactStore store.Store) (*service.IdentityService, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	opts := []service.Option{
		service.WithRetrier(service.NewRetrier(cfg.RetryAttempts, cfg.RetryDelay)),
		service.WithAttemptTimeout(cfg.ConnectTimeout),
	}

	if err := cfg.Validate(); err != nil {
		return nil, func() {}, err
	}

	if cfg.RedisAddr != "" {
		redis, err := cache.NewRedis(cfg.RedisAddr)
		if err != nil {
			return nil, func() {}, fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func() { _ = redis.Close() })
		opts = append(opts, service.WithLocker(cache.NewRedisLocker(redis.Client(), cfg.LockTTL, cfg.LockWait)))
		logrus.Infof("identity lock enabled on redis %s", cfg.RedisAddr)
	}

	if cfg.KafkaBrokers != "" {
		q, err := queue.NewKafkaContactQueue(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("create kafka producer: %w", err)
		}
		closers = append(closers, func() { _ = q.Close() })
		opts = append(opts, service.WithQueue(q))
		logrus.Infof("publishing contact events to %s", cfg.KafkaTopic)
	}

	return service.NewIdentityService(contactStore, opts...), closeAll, nil
}

// Start starts the grpc and http servers
func Start(cfg *config.Config) error {
	var err error

	grpcPort := ":" + cfg.GrpcPort
	httpPort := ":" + cfg.HttpPort

	rdb, err := config.OpenDb(cfg)
	if err != nil {
		return err
	}

	contactStore := store.NewGormStore(rdb)
	if err = contactStore.Migrate(); err != nil {
		return err
	}
	logrus.Info("database initialized")

	identityService, closeService, err := NewIdentityService(cfg, contactStore)
	if err != nil {
		return err
	}
	defer closeService()

	if cfg.AuditSchedule != "" {
		executor := jobs.NewTaskExecutor(jobs.NewLinkageAudit(contactStore, cfg.AuditSchedule))
		if err = executor.Run(); err != nil {
			return err
		}
		defer executor.Stop()
	}

	gl, err := net.Listen("tcp", grpcPort)
	if err != nil {
		return err
	}

	rl, err := net.Listen("tcp", httpPort)
	if err != nil {
		return err
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpcmiddleware.ChainUnaryServer(
			UnaryGrpcRequestTimeInterceptor(),
		)),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	endpoint := "localhost" + grpcPort
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(UnaryRequestTimeInterceptor()),
	)
	if err != nil {
		return err
	}
	defer conn.Close()

	mux, err := NewGatewayMux(identityService, grpc_health_v1.NewHealthClient(conn))
	if err != nil {
		return err
	}

	apiMux := http.NewServeMux()
	apiMux.Handle("/", mux)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"}, // All origins are allowed
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})

	restServer := &http.Server{
		Addr:              httpPort,
		Handler:           c.Handler(WithRequestID(apiMux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// make sure to wait for the servers to stop before exiting
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Info("identity service listening on: ", httpPort)
		if err := restServer.Serve(rl); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("error starting rest gateway: %v", err)
			}
		}
		logrus.Infof("rest gateway stopped")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Info("starting grpc server on: ", grpcPort)
		if err := grpcServer.Serve(gl); err != nil {
			logrus.Infof("grpc failed to start: %v", err)
		}
		logrus.Infof("grpc server stopped")
	}()

	logrus.Infof("Press Ctrl+C to stop the server")

	// listen for interrupt signal to gracefully shut down the server
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM, unix.SIGINT)
	<-sigs
	// clean Ctrl+C output
	fmt.Println()

	healthServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = restServer.Shutdown(ctx); err != nil {
		logrus.Errorf("error stopping rest gateway: %v", err)
	}
	grpcServer.GracefulStop()

	wg.Wait()

	return nil
}
