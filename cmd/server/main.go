// cmd/server/main.go
package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/funilzap/crm-backend/internal/config"
	"github.com/funilzap/crm-backend/internal/controller"
	"github.com/funilzap/crm-backend/internal/db"
	"github.com/funilzap/crm-backend/internal/handler"
	"github.com/funilzap/crm-backend/internal/logging"
	"github.com/funilzap/crm-backend/internal/model"
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

	conn, err := db.Open(cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	if err := db.Migrate(conn); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	jobRepo := &repository.JobRepository{DB: conn}
	leadRepo := &repository.LeadRepository{DB: conn}
	tagRepo := &repository.TagRepository{DB: conn}
	templateRepo := &repository.TemplateRepository{DB: conn}

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

	// With a broker configured the server only publishes; cmd/worker runs
	// the dispatch loop. Without one, dispatch runs in-process.
	var q queue.Queue
	if cfg.AMQPURL != "" {
		amqpQueue, err := queue.NewAMQPQueue(cfg.AMQPURL)
		if err != nil {
			log.Fatal().Err(err).Msg("broker unavailable")
		}
		defer amqpQueue.Close()
		q = amqpQueue
	} else {
		log.Warn().Msg("AMQP_URL not set, dispatching in-process")
		mem := queue.NewInMemoryQueue()
		mem.Subscribe(queue.DispatchQueue, func(jobID string) error {
			return dispatcher.Run(context.Background(), jobID)
		})
		q = mem
	}

	audienceService := &service.AudienceService{LeadRepo: leadRepo, TagRepo: tagRepo}
	jobService := &service.JobService{
		JobRepo:      jobRepo,
		TemplateRepo: templateRepo,
		Audience:     audienceService,
		Queue:        q,
		DefaultThrottling: model.Throttling{
			DelayMs:      cfg.DefaultDelayMs,
			MaxPerMinute: cfg.DefaultMaxPerMinute,
			MaxPerHour:   cfg.DefaultMaxPerHour,
		},
	}

	massActionController := &controller.MassActionController{
		JobService:      jobService,
		AudienceService: audienceService,
	}
	massActionHandler := &handler.MassActionHandler{JobRepo: jobRepo}

	r := chi.NewRouter()

	r.Post("/mass-actions", massActionController.CreateMassAction)
	r.Get("/mass-actions", massActionController.ListMassActions)
	r.Post("/mass-actions/preview", massActionController.PreviewAudience)
	r.Get("/mass-actions/{id}", massActionHandler.GetMassActionWithStats)
	r.Patch("/mass-actions/{id}", massActionHandler.UpdateMassActionStatus)
	r.Post("/mass-actions/{id}/dispatch", massActionController.DispatchMassAction)
	r.Get("/mass-actions/{id}/items", massActionHandler.ListMassActionItems)
	r.Patch("/mass-actions/{id}/items", massActionHandler.UpdateMassActionItem)

	log.Info().Str("port", cfg.Port).Msg("server running")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
