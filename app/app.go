package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bookswap/bookswap-service/config"
	"github.com/bookswap/bookswap-service/internal/handler"
	"github.com/bookswap/bookswap-service/internal/repository"
	"github.com/bookswap/bookswap-service/internal/server"
	"github.com/bookswap/bookswap-service/internal/service"
	"github.com/bookswap/bookswap-service/migrations"
	"github.com/bookswap/bookswap-service/pkg/kafka"
	"github.com/bookswap/bookswap-service/pkg/logger"
	"github.com/bookswap/bookswap-service/pkg/postgres"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "bookswap")
	db, err := postgres.NewPostgresDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		log.Fatal("db init", zap.Error(err))
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		log.Fatal("repo", zap.Error(err))
	}

	events := service.NewNopPublisher()
	if cfg.Kafka.Enabled() {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			log.Fatal("kafka.NewProducer", zap.Error(err))
		}
		defer producer.Close() //nolint:errcheck
		events = service.NewPublisher(producer, cfg.Kafka.Topic, log)
	}

	bookSvc := service.NewBookService(repo, repo, repo, events, log)
	offerSvc := service.NewOfferService(repo, repo, repo, events, log)
	notificationSvc := service.NewNotificationService(repo, repo, log)

	h := handler.New(bookSvc, offerSvc, notificationSvc, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
	go func() {
		if err := srv.Run(); err != nil {
			log.Error("server run", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.DPanic("srv.Stop", zap.Error(err))
	}
	db.Close()
	log.Info("Graceful shutdown finished")
}
