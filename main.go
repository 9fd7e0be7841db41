// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ffutop/modbus-panel/internal/config"
	localslave "github.com/ffutop/modbus-panel/internal/local-slave"
	"github.com/ffutop/modbus-panel/internal/panel"
	"github.com/ffutop/modbus-panel/modbus"
	"github.com/ffutop/modbus-panel/transport/rtu"
)

func main() {
	config.RegisterFlags(pflag.CommandLine)
	pflag.Usage = usage
	pflag.Parse()

	if pflag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	// Load Configuration
	configFile, _ := pflag.CommandLine.GetString("config")
	cfg, err := config.LoadConfigWithFlags(configFile, pflag.CommandLine)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if pflag.Arg(0) == "simulate" {
		if err := simulate(ctx, cfg); err != nil {
			slog.Error("Simulator stopped with error", "err", err)
			os.Exit(1)
		}
		return
	}

	p, err := panel.New(cfg)
	if err != nil {
		slog.Error("Failed to open panel", "err", err)
		os.Exit(1)
	}

	err = run(ctx, p, pflag.Args(), os.Stdout)
	p.Close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", panel.Status(err), err)
		os.Exit(1)
	}
}

// simulate serves a simulated controller on the configured serial port
// until interrupted.
func simulate(ctx context.Context, cfg *config.Config) error {
	slave := localslave.NewLocalSlave(panel.SimulatedController(cfg))
	srv := rtu.NewServer(cfg.Serial)

	slog.Info("Starting simulated controller...", "slaveID", cfg.Bus.SlaveID, "programs", len(cfg.Sim.Programs))
	return srv.Serve(ctx, func(slaveID byte, req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, bool) {
		if slaveID != cfg.Bus.SlaveID {
			return modbus.ProtocolDataUnit{}, false
		}
		return slave.Process(req), true
	})
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [flags] <command> [args]

Commands:
  relay <1-8> <on|off>         switch a relay
  start                        start the test
  test|run|stop <on|off>       drive a control signal
  select <program>             select program 1-30
  scan                         read all program names
  names                        print the program list
  read <address> [count]       read holding registers
  write <address> <value>      write a holding register
  coil <address> <on|off>      write a coil
  simulate                     answer as the controller on the serial port

Flags:
`, os.Args[0])
	pflag.PrintDefaults()
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stderr: %v\n", err)
			handler = slog.NewTextHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		// stdout carries command output
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
