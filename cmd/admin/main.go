package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/config"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/db"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/metrics"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/user"
)

func main() {
	_ = godotenv.Load()

	std := log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		std.Fatalf("error: %s", err)
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		std.Fatalf("error: %s", err)
	}
	defer db.Close(database)

	// The CLI exports no telemetry.
	cli := commandLine{
		db:     database,
		usrSvc: user.NewService(user.NewRepository(database, metrics.NewMock())),
		out:    os.Stdout,
	}
	if err := cli.run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			std.Printf("error: %s", err)
		}
		db.Close(database)
		os.Exit(1)
	}
}
