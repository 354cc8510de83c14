// Command agentbridge runs the catalog API, its MCP tool provider and the A2A
// agents in front of it.
//
// Usage:
//
//	agentbridge serve-api --config agentbridge.yaml
//	agentbridge serve-tools --transport http
//	agentbridge serve-agent --kind model
//	agentbridge call --skill add_product --input name=Lamp --input price=19.99
//	agentbridge list-tools --url http://localhost:8081/mcp
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentbridge/catalog/client"
	"github.com/hupe1980/agentbridge/config"
	"github.com/hupe1980/agentbridge/logging"
)

// CLI defines the command-line interface.
type CLI struct {
	ServeAPI   ServeAPICmd   `cmd:"" name:"serve-api" help:"Serve the catalog REST API."`
	ServeTools ServeToolsCmd `cmd:"" name:"serve-tools" help:"Serve the catalog tools over MCP."`
	ServeAgent ServeAgentCmd `cmd:"" name:"serve-agent" help:"Serve an agent over A2A."`
	Call       CallCmd       `cmd:"" help:"Send a task to an A2A agent."`
	ListTools  ListToolsCmd  `cmd:"" name:"list-tools" help:"List the tools of an MCP server."`
	Version    VersionCmd    `cmd:"" help:"Show version information."`

	Config   string   `short:"c" help:"Path to config file." type:"path" env:"AGENTBRIDGE_CONFIG"`
	EnvFile  []string `name:"env-file" help:"Dotenv files to load (default .env.local and .env)."`
	LogLevel string   `name:"log-level" help:"Override logging.level (debug, info, warn, error)."`
}

// load reads the environment and configuration shared by all commands.
func (c *CLI) load() (*config.Config, error) {
	if err := config.LoadEnvFiles(c.EnvFile...); err != nil {
		return nil, err
	}

	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}

	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func newLogger(cfg *config.Config, name string) logging.Logger {
	return logging.New(cfg.Logging.LoggerConfig(name))
}

func newCatalogClient(cfg *config.Config, logger logging.Logger) (*client.Client, error) {
	return client.New(cfg.Catalog.BaseURL, func(o *client.Options) {
		o.Logger = logger
		o.UserAgent = "agentbridge/" + version()
	})
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// serveHTTP runs handler on addr until ctx is done, then shuts down
// gracefully.
func serveHTTP(ctx context.Context, logger logging.Logger, name, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server.start", "server", name, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info("server.shutdown", "server", name)

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("agentbridge %s\n", version())
	return nil
}

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentbridge"),
		kong.Description("Product catalog API with an MCP tool provider and A2A agents."),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
