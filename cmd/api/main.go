package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patpanic/patpanic-backend/internal/cards"
	"github.com/patpanic/patpanic-backend/internal/config"
	"github.com/patpanic/patpanic-backend/internal/server"
	"github.com/patpanic/patpanic-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	repo, err := cards.Load(cfg.ThemesDir)
	if err != nil {
		log.Fatalf("loading themes: %v", err)
	}

	var pg *store.PostgresStore
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Fatalf("connecting to database: %v", err)
		}
		defer pg.Close()
	} else {
		log.Println("DATABASE_URL not set, snapshots held in memory only")
	}

	httpServer, srv := server.NewServer(cfg, repo, pg)
	defer srv.Registry().Close()

	go func() {
		log.Printf("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
