package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ducminhle1904/webhook-bridge/internal/journal"
	"github.com/ducminhle1904/webhook-bridge/internal/monitoring"
	"github.com/ducminhle1904/webhook-bridge/internal/queue"
	"github.com/ducminhle1904/webhook-bridge/internal/relay"
	"github.com/ducminhle1904/webhook-bridge/internal/risk"
)

// RequestIDHeader carries the id assigned to every request.
const RequestIDHeader = "X-Request-ID"

// Processor executes a Bybit signal.
type Processor interface {
	Process(ctx context.Context, account string, signal risk.Signal) (*relay.Outcome, error)
}

// Pinger reports whether the exchange is reachable.
type Pinger interface {
	Ping(ctx context.Context) bool
}

// Config holds the HTTP layer settings.
type Config struct {
	// WebhookSecret is compared against the token field of inbound bodies.
	// An empty secret disables the check.
	WebhookSecret string
	// RequireTokenForBybit applies the token check to /bybit as well as /enqueue.
	RequireTokenForBybit bool
	// Testnet is reported by /status.
	Testnet bool
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Queue     queue.Queue
	Processor Processor
	Exchange  Pinger
	Journal   *journal.Journal
	Logger    *zap.Logger
}

// Server is the webhook HTTP server.
type Server struct {
	cfg       Config
	queue     queue.Queue
	processor Processor
	exchange  Pinger
	journal   *journal.Journal
	logger    *zap.Logger
	router    *gin.Engine
	now       func() time.Time
}

// New builds the server and its routes.
func New(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:       cfg,
		queue:     deps.Queue,
		processor: deps.Processor,
		exchange:  deps.Exchange,
		journal:   deps.Journal,
		logger:    logger,
		now:       time.Now,
	}

	router := gin.New()
	router.Use(requestID())
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	s.router = router
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.POST("/enqueue", s.enqueue)
	s.router.GET("/dequeue", s.dequeue)
	s.router.POST("/bybit", s.bybit)
	s.router.GET("/status", s.status)
	s.router.GET("/metrics", gin.WrapH(monitoring.NewMetricsHandler()))
	s.router.GET("/journal.xlsx", s.exportJournal)

	s.router.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "Not found")
	})
}

// Router returns the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting webhook server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down webhook server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format("2006-01-02T15:04:05.000Z")
}
