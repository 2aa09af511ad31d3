// Command munch is the Munchify terminal client.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/xenking/munchify/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
