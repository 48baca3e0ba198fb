package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"cipher-server-go/internal/bootstrap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	err := bootstrap.Run(context.Background(), bootstrap.Options{
		ConfigPath: *configPath,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "cipher-server failed: %v\n", err)
		os.Exit(1)
	}
}
