// Command chromactl inspects and edits a persisted Chroma store through the
// same client core as the C library.
//
//	chromactl --persist-path ./data collections list
//	chromactl --persist-path ./data query --collection docs --embedding 0.1,0.2 -k 5
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
