package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/config"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/httpx"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/kafkax"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/logger"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/notify"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/orders"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/postgres"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/realtime"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/redisx"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/topics"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logg := logger.New(cfg.ServiceName)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	stream := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, logg)
	stream.Start(ctx)

	registry := topics.NewRegistry()
	hub := realtime.NewHub(registry, logg)
	dispatcher := notify.NewDispatcher(registry, hub, stream, cfg.ServiceName, logg)
	ledger := orders.NewLedger(orders.NewPGStore(db), dispatcher, cfg.TaxRateBPS, logg)

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{Ledger: ledger, Redis: rdb, Log: logg}
	oh.Register(router)
	sh := &httpx.StreamHandler{Hub: hub, Registry: registry, Log: logg}
	sh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
	stream.Close() // flush the remaining events
	stream.WaitClosed()
}
