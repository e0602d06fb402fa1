package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/vksync/internal/app"
	"github.com/dmitrijs2005/vksync/internal/config"
	"github.com/dmitrijs2005/vksync/internal/flagx"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := a.Run(ctx, flagx.Positional(os.Args[1:], config.ValuedFlags)); err != nil {
		log.Fatalf("%v", err)
	}
}
