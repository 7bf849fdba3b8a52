package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/chatter/internal/server"
	"github.com/dmitrijs2005/chatter/internal/server/config"
)

func main() {
	cfg := config.LoadConfig()

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(context.Background())
}
