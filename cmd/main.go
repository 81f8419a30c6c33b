package main

import (
	"log"
	"os"

	"github.com/jaennil/guide_helper/backend/geocache/internal/app"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/config"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	cfg, err := config.New()
	if err != nil {
		log.Println("failed to load config: ", err)
		return 1
	}

	if err := app.Run(cfg); err != nil {
		log.Println("geocache exited with error: ", err)
		return 1
	}

	return 0
}
