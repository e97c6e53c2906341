// Command memory-tiles starts the Memory Tiles game server.
//
// It supports two modes:
//  1. "serve" (default): runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "mcp": runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Settings come from the environment (and .env); flags override host/port,
// debug logging, the store backend, and ngrok tunneling.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/memory-tiles/api"
	"github.com/wricardo/memory-tiles/config"
	"github.com/wricardo/memory-tiles/game/imageset"
	"github.com/wricardo/memory-tiles/game/service"
	"github.com/wricardo/memory-tiles/game/session"
	"github.com/wricardo/memory-tiles/transport/mcp"
	natstransport "github.com/wricardo/memory-tiles/transport/nats"
	"github.com/wricardo/memory-tiles/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Memory Tiles Game Server"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. serve is also the root action.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "memory-tiles",
		Usage:   "Tile-matching memory game server",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "HTTP server host (HOST)"},
			&cli.IntFlag{Name: "port", Usage: "HTTP server port (PORT)"},
			&cli.StringFlag{Name: "store", Usage: "Session store: memory, file, sqlite, postgres, redis (STORE_BACKEND)"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel (NGROK_ENABLED)"},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token (NGROK_AUTHTOKEN)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (NGROK_DOMAIN)"},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action: serveAction,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp"},
				Usage:   "Run MCP stdio server, with an internal HTTP server if needed",
				Action:  mcpAction,
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Fprintf(cmd.Root().Writer, "%s v%s\n", AppName, Version)
					return nil
				},
			},
		},
	}
}

// loadConfig reads the environment and applies command line overrides.
func loadConfig(cmd *cli.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func applyFlags(cmd *cli.Command, cfg *config.Config) {
	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.Int("port")
	}
	if cmd.IsSet("store") {
		cfg.StoreBackend = cmd.String("store")
	}
	if cmd.Bool("debug") {
		cfg.LogLevel = "debug"
	}
	if cmd.Bool("ngrok") {
		cfg.NgrokEnabled = true
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.NgrokAuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.NgrokDomain = cmd.String("ngrok-domain")
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.Infof("Starting %s v%s (mode: serve)", AppName, Version)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := initializeServices(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.close()

	return runHTTPServer(ctx, cfg, svc)
}

func mcpAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.Infof("Starting %s v%s (mode: mcp)", AppName, Version)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := initializeServices(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.close()

	return runStdioMCPWithInternalServer(ctx, cfg, svc)
}

// services holds everything built from the configuration.
type services struct {
	log         *logrus.Logger
	store       io.Closer
	sessions    *session.Manager
	images      *imageset.Manager
	gameService service.GameService
	hub         *websocket.Hub
	nats        io.Closer
}

// initializeServices wires the store, image sets, session manager, hub, the
// optional NATS publisher, and the game service. It also starts the hub and
// the idle cleanup routine, both bound to ctx.
func initializeServices(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*services, error) {
	svc := &services{log: logger}

	imagesDir := cfg.ImageSetsDir
	if _, err := os.Stat(imagesDir); imagesDir != "" && errors.Is(err, os.ErrNotExist) {
		logger.Warnf("Image set directory %s not found, serving the built-in set only", imagesDir)
		imagesDir = ""
	}
	images, err := imageset.NewManager(imagesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create image set manager: %w", err)
	}
	if cfg.DefaultImageSet != "" && cfg.DefaultImageSet != imageset.DefaultSetName {
		if err := images.SetDefault(cfg.DefaultImageSet); err != nil {
			return nil, fmt.Errorf("failed to select default image set: %w", err)
		}
	}
	svc.images = images

	store, closer, err := config.OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	svc.store = closer
	logger.WithField("backend", cfg.StoreBackend).Info("Session store ready")

	svc.hub = websocket.NewHub(logger)
	go svc.hub.Run(ctx)

	listeners := []session.Listener{svc.hub}
	if cfg.NATSURL != "" {
		conn, err := natstransport.Connect(cfg.NATSURL, AppName)
		if err != nil {
			svc.close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		svc.nats = natsCloser{conn.Close}
		listeners = append(listeners, natstransport.NewPublisher(conn, logger))
		logger.WithField("url", cfg.NATSURL).Info("Publishing won events to NATS")
	}

	sessions, err := session.NewManager(session.Options{
		Store:         store,
		Images:        images,
		AutosaveDelay: cfg.AutosaveDelay,
		MatchDelay:    cfg.MatchDelay,
		MismatchDelay: cfg.MismatchDelay,
		Logger:        logger,
		Listeners:     listeners,
	})
	if err != nil {
		svc.close()
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}
	svc.sessions = sessions
	svc.gameService = service.NewGameService(sessions, images)

	go sessionCleanupRoutine(ctx, sessions, cfg.CleanupInterval, cfg.IdleTimeout, logger)

	return svc, nil
}

type natsCloser struct{ close func() }

func (c natsCloser) Close() error {
	c.close()
	return nil
}

// close flushes pending autosaves and releases backend connections.
func (s *services) close() {
	if s.sessions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.sessions.Close(ctx); err != nil {
			s.log.WithError(err).Error("Failed to flush sessions")
		}
		cancel()
	}
	if s.nats != nil {
		s.nats.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.WithError(err).Error("Failed to close session store")
		}
	}
}

// sessionCleanupRoutine periodically saves and evicts games that have not
// been touched within idle.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, interval, idle time.Duration, logger logrus.FieldLogger) {
	if interval <= 0 || idle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupIdle(ctx, idle); removed > 0 {
				logger.Infof("Evicted %d idle games", removed)
			}
		}
	}
}

// newMainHandler mounts the API server at the root and the MCP endpoint at /mcp.
func newMainHandler(apiServer http.Handler, mcpClient *mcp.Client) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
	return mainRouter
}

// runHTTPServer serves until ctx is cancelled. If ngrok is enabled, it also
// provisions a public tunnel.
func runHTTPServer(ctx context.Context, cfg *config.Config, svc *services) error {
	logger := svc.log
	addr := cfg.Addr()

	apiServer := api.NewServer(svc.gameService, svc.hub, logger)
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))
	handler := newMainHandler(apiServer, mcpClient)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Infof("HTTP server listening on %s", addr)
		logger.Infof("REST API: http://%s/api", addr)
		logger.Infof("WebSocket: ws://%s/ws?player=<player_id>", addr)
		logger.Infof("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	if cfg.NgrokEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, cfg, handler, logger)
		}()
	}

	var err error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
	case err = <-serveErr:
		logger.WithError(err).Error("HTTP server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.WithError(shutdownErr).Error("HTTP server shutdown error")
	}

	wg.Wait()
	logger.Info("Server stopped")
	return err
}

func runNgrokTunnel(ctx context.Context, cfg *config.Config, handler http.Handler, logger logrus.FieldLogger) {
	if cfg.NgrokAuthToken == "" {
		logger.Warn("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	logger.Info("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
		logger.Infof("Using custom ngrok domain: %s", cfg.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokAuthToken))
	if err != nil {
		logger.WithError(err).Error("Failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close ngrok tunnel")
		}
	}()

	ngrokURL := tun.URL()
	logger.Infof("🚀 Ngrok tunnel established: %s", ngrokURL)
	logger.Infof("  REST API (ngrok): %s/api", ngrokURL)
	logger.Infof("  WebSocket (ngrok): %s/ws?player=<player_id>", ngrokURL)
	logger.Infof("  MCP endpoint (ngrok): %s/mcp", ngrokURL)
	logger.Infof("  Game UI (ngrok): %s/", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		logger.WithError(err).Error("Ngrok server error")
	}
	logger.Info("Ngrok tunnel closed")
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It reuses an external API at the configured address when one answers;
// otherwise it starts an internal HTTP API on a random loopback port.
func runStdioMCPWithInternalServer(ctx context.Context, cfg *config.Config, svc *services) error {
	logger := svc.log
	externalURL := fmt.Sprintf("http://%s", cfg.Addr())
	baseURL := externalURL

	logger.Infof("Checking for external API server at %s...", externalURL)
	if !apiAvailable(externalURL) {
		logger.Info("No external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		internalAddr := listener.Addr().String()

		httpServer := &http.Server{
			Handler: api.NewServer(svc.gameService, svc.hub, logger),
		}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("Internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		baseURL = fmt.Sprintf("http://%s", internalAddr)
		logger.Infof("Internal HTTP server on %s for MCP stdio", internalAddr)
	} else {
		logger.Infof("External API server found at %s, using it for MCP", externalURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready")

	stdio := server.NewStdioServer(mcpClient.GetMCPServer())
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// apiAvailable reports whether a game API answers its health check at baseURL.
func apiAvailable(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
