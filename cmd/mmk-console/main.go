package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/target/mmk-console/config"
	"github.com/target/mmk-console/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
	In     io.Reader

	lines *bufio.Reader
}

// open wires a console for one command. The caller closes it.
func (c *commandContext) open() (*bootstrap.Console, error) {
	return bootstrap.NewConsole(c.Ctx, bootstrap.ConsoleOptions{
		Config: c.Config,
		Logger: c.Logger,
	})
}

func (c *commandContext) closeConsole(console *bootstrap.Console) {
	if err := console.Close(); err != nil {
		c.Logger.Warn("console close failed", "error", err)
	}
}

func main() {
	cfg, cfgErr := bootstrap.LoadConfig()
	logger := bootstrap.InitLogger(cfg.LogLevel)
	if cfgErr != nil {
		logger.ErrorContext(context.Background(), "load config", "error", cfgErr)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
		In:     os.Stdin,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		stop()
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"signin": {
			name:        "signin",
			description: "Sign in and persist the session",
			run:         runSignIn,
		},
		"register": {
			name:        "register",
			description: "Create an account (does not sign in)",
			run:         runRegister,
		},
		"signout": {
			name:        "signout",
			description: "Forget the persisted session",
			run:         runSignOut,
		},
		"status": {
			name:        "status",
			description: "Show the persisted session and token expiry",
			run:         runStatus,
		},
		"passwd": {
			name:        "passwd",
			description: "Change the signed-in user's password",
			run:         runChangePassword,
		},
		"role": {
			name:        "role",
			description: "Show or change the signed-in user's role",
			run:         runRole,
		},
		"users": {
			name:        "users",
			description: "List or inspect users (admin only)",
			run:         runUsers,
		},
		"products": {
			name:        "products",
			description: "List products, or show one by id",
			run:         runProducts,
		},
		"open": {
			name:        "open",
			description: "Resolve a console location through its route guards",
			run:         runOpen,
		},
		"get": {
			name:        "get",
			description: "Send an authenticated GET and print the JSON body",
			run:         runGet,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: mmk-console <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}

	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)

	all := commands()
	for _, name := range names {
		if err := writef(w, "  %-12s %s\n", name, all[name].description); err != nil {
			return err
		}
	}
	return nil
}
