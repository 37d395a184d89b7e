package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linkpulse/internal"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	app, err := internal.NewApp()
	if err != nil {
		return err
	}

	log.Println("Migrating database...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return err
	}

	log.Println("Starting linkpulse...")
	if err := app.StartAsync(); err != nil {
		return err
	}

	// Block until a termination signal arrives, then drain.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	sig := <-sigChan
	log.Printf("Received %v, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.Shutdown(ctx); err != nil {
		return err
	}
	log.Println("Shutdown complete")
	return nil
}
