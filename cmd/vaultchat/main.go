package main

import (
	"context"
	"log"

	"github.com/jsilins/vaultchat/internal/cli"
	"github.com/jsilins/vaultchat/internal/config"
)

func main() {
	cfg := config.LoadConfig()

	app, err := cli.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(context.Background())
}
