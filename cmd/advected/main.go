// Command advected fills a texture with procedural noise from compute kernels every frame and draws
// it over a window. Enter cycles through the kernel modes; Escape quits.
//
// Usage:
//
//	advected [flags] [dim]
//
// dim is the edge length of the native-resolution target. When it is omitted it is read from stdin.
package main

import (
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"

	"golang.org/x/term"
)

func main() {
	log.SetFlags(0)

	cfg, err := parseConfig(os.Args[1:], os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Printf("advected: %v", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel()}))

	if cfg.headless {
		err = runHeadless(cfg, logger)
	} else {
		err = runInteractive(cfg, logger)
	}
	if err != nil {
		log.Printf("advected: %v", err)
		os.Exit(1)
	}
}
