// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

// Command pfs inspects, unpacks and packs Artemis engine PFS archives.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"github.com/alecthomas/kong"
)

// CLI defines the command-line interface.
type CLI struct {
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" env:"PFS_LOG_LEVEL" help:"Log level (${enum})."`
	LogFormat string `name:"log-format" default:"text" enum:"text,json" env:"PFS_LOG_FORMAT" help:"Log format (${enum})."`

	Info   InfoCmd   `cmd:"" help:"Show header and entries of a PFS archive."`
	Unpack UnpackCmd `cmd:"" help:"Extract a PFS archive to a directory."`
	Pack   PackCmd   `cmd:"" help:"Pack a directory into a PFS archive."`
}

// env carries per-invocation dependencies into command Run methods.
type env struct {
	ctx context.Context
	log *slog.Logger
	out *console
}

// console serializes progress output from concurrent workers.
type console struct {
	w  io.Writer
	mu sync.Mutex
}

// Printf writes one formatted line.
func (c *console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintf(c.w, format, args...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	if err != nil {
		os.Exit(1)
	}
}

// run parses args and executes the selected command.
// Parse and command errors are logged to stderr and returned.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var cli CLI
	exitCode := -1

	parser, err := kong.New(&cli,
		kong.Name("pfs"),
		kong.Description("Inspect, unpack and pack Artemis engine PFS archives."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { exitCode = code }),
	)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if exitCode >= 0 {
		// --help already printed usage
		if exitCode == 0 {
			return nil
		}

		return fmt.Errorf("exit status %d", exitCode)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "pfs: error: %v\n", err)
		return err
	}

	rt := &env{
		ctx: ctx,
		log: newLogger(cli.LogLevel, cli.LogFormat, stderr),
		out: &console{w: stdout},
	}

	if err := kctx.Run(rt); err != nil {
		rt.log.Error("command failed", "command", kctx.Command(), "error", err)
		return err
	}

	return nil
}
