package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mattn/go-sqlite3"

	"github.com/minsulee/noraebot/internal/config"
	"github.com/minsulee/noraebot/internal/handlers"
	"github.com/minsulee/noraebot/internal/repository"
	"github.com/minsulee/noraebot/internal/resolver"
	"github.com/minsulee/noraebot/internal/session"
	"github.com/minsulee/noraebot/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	db, err := repository.OpenDB(cfg)
	if err != nil {
		log.Fatal(err)
	}
	repo := repository.NewRepo(db)
	st := store.NewStore(cfg, repo)
	if err := st.Sweep(); err != nil {
		slog.Warn("download dir sweep failed", "err", err)
	}
	res := resolver.New(cfg, st)
	registry := session.NewRegistry(res)
	bot := handlers.NewBot(cfg, repo, registry)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := bot.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
