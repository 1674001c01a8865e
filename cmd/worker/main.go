// cmd/worker/main.go
package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/funilzap/crm-backend/internal/config"
	"github.com/funilzap/crm-backend/internal/db"
	"github.com/funilzap/crm-backend/internal/logging"
	"github.com/funilzap/crm-backend/internal/queue"
	"github.com/funilzap/crm-backend/internal/repository"
	"github.com/funilzap/crm-backend/internal/sender"
	"github.com/funilzap/crm-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logging.Setup(cfg.LogLevel)

	if cfg.AMQPURL == "" {
		log.Fatal().Msg("AMQP_URL is required for the dispatch worker")
	}

	conn, err := db.Open(cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}

	jobRepo := &repository.JobRepository{DB: conn}
	leadRepo := &repository.LeadRepository{DB: conn}
	tagRepo := &repository.TagRepository{DB: conn}

	var send sender.Sender
	if cfg.WhatsAppAPIURL != "" {
		send = sender.NewHTTPSender(cfg.WhatsAppAPIURL, cfg.WhatsAppToken)
	} else {
		log.Warn().Msg("WHATSAPP_API_URL not set, using mock sender")
		send = &sender.MockSender{FailureRate: 0.1}
	}

	dispatcher := &service.Dispatcher{
		JobRepo:     jobRepo,
		LeadRepo:    leadRepo,
		TagRepo:     tagRepo,
		Sender:      send,
		CompanyName: cfg.CompanyName,
	}

	q, err := queue.NewAMQPQueue(cfg.AMQPURL)
	if err != nil {
		log.Fatal().Err(err).Msg("broker unavailable")
	}
	defer q.Close()

	err = q.Subscribe(queue.DispatchQueue, func(jobID string) error {
		return dispatcher.Run(context.Background(), jobID)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("subscribe failed")
	}

	log.Info().Msg("worker running, waiting for jobs")
	select {}
}
