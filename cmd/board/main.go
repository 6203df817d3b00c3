package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/board"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/config"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/kafkax"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/logger"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/orders"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logg := logger.New(cfg.ServiceName + "-board")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &board.Service{Redis: rdb, Log: logg}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.BoardGroup, orders.TopicOrderEvents, cfg.BoardWorkers, logg)

	go func() {
		log.Printf("board consumer started: group=%s topic=%s workers=%d",
			cfg.BoardGroup, orders.TopicOrderEvents, cfg.BoardWorkers)
		if err := cons.Start(ctx, svc.HandleOrderEvent); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down board consumer...")
	cancel()
}
