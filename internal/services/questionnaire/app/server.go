package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alranel/GlobaLeaks/internal/platform/cache"
	"github.com/alranel/GlobaLeaks/internal/platform/config"
	"github.com/alranel/GlobaLeaks/internal/services/questionnaire/api/rest"
	questionnairesqlite "github.com/alranel/GlobaLeaks/internal/services/questionnaire/storage/sqlite"
)

const shutdownTimeout = 5 * time.Second

type serverEnv struct {
	DBPath    string `env:"GLOBALEAKS_QUESTIONNAIRE_DB_PATH"`
	RedisAddr string `env:"GLOBALEAKS_REDIS_ADDR"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "questionnaire.db")
	}
	return cfg
}

// Server hosts the questionnaire admin HTTP API and storage lifecycle.
type Server struct {
	listener    net.Listener
	httpServer  *http.Server
	store       *questionnairesqlite.Store
	invalidator cache.Invalidator
}

// New creates a configured questionnaire server listening on the provided port.
func New(ctx context.Context, port int) (*Server, error) {
	return NewWithAddr(ctx, fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured questionnaire server for the provided address.
func NewWithAddr(ctx context.Context, addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	env := loadServerEnv()
	store, err := openQuestionnaireStore(env.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	invalidator, err := newInvalidator(ctx, env.RedisAddr)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, err
	}

	handler := rest.NewHandler(NewService(store), invalidator)
	return &Server{
		listener:    listener,
		httpServer:  &http.Server{Handler: handler},
		store:       store,
		invalidator: invalidator,
	}, nil
}

// newInvalidator connects to redis when an address is configured and falls
// back to a no-op invalidator otherwise.
func newInvalidator(ctx context.Context, redisAddr string) (cache.Invalidator, error) {
	if strings.TrimSpace(redisAddr) == "" {
		return cache.Noop{}, nil
	}
	invalidator, err := cache.NewRedisInvalidator(ctx, redisAddr, cache.DefaultChannel)
	if err != nil {
		return nil, fmt.Errorf("connect cache invalidator: %w", err)
	}
	return invalidator, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a questionnaire server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(ctx, port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("questionnaire server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// Close releases questionnaire server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if closer, ok := s.invalidator.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Printf("close cache invalidator: %v", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close questionnaire store: %v", err)
		}
	}
}

func openQuestionnaireStore(path string) (*questionnairesqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := questionnairesqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open questionnaire sqlite store: %w", err)
	}
	return store, nil
}
