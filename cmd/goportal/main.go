// Command goportal is a terminal client for the waste-management portal.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/goPortal/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
