package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"balaka-tickets/config"
	"balaka-tickets/internal/gateway"
	"balaka-tickets/internal/handlers"
	"balaka-tickets/internal/ledger"
	_ "balaka-tickets/migrations"
	"balaka-tickets/security"
	"balaka-tickets/services"
	"balaka-tickets/utils"
)

func Start() error {
	app := pocketbase.New()

	cfg := config.LoadConfig()

	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// App-facing realtime channel
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey
	publisher := services.NewPubNubPublisher(pubnub.NewPubNub(pnConfig))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw, err := gateway.NewFactory().CreateGateway(ctx, gateway.ProviderPayChangu, &cfg.PayChangu)
	if err != nil {
		return err
	}
	defer gw.Close(ctx)

	store := ledger.NewAppStore(app)

	inventoryService := services.NewInventoryService(store, cfg.QRSigningKey)
	engagementService := services.NewEngagementService(store)
	feedService := services.NewFeedService(store, redisClient, publisher)
	purchaseService := services.NewPurchaseService(
		store, redisClient, inventoryService, gw, publisher,
		cfg.PollInterval, cfg.MaxPollAttempts, cfg.SessionTTL,
	)

	// Late confirmations relayed by the gateway (payments that settled
	// after the poll bound) feed the same idempotent commit path as the
	// webhook endpoint.
	confirmations := make(chan *gateway.TransactionStatus, 1)
	gw.SetConfirmationChannel(confirmations)
	go func() {
		for {
			select {
			case tx := <-confirmations:
				slog.Info("gateway relay confirmation", "payment_id", tx.PaymentID, "status", tx.Status)
				if err := purchaseService.HandleConfirmation(ctx, tx); err != nil {
					slog.Error("relay confirmation failed", "payment_id", tx.PaymentID, "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	limiter := security.NewRateLimiter(redisClient)

	purchaseHandler := handlers.NewPurchaseHandler(app, purchaseService, limiter)
	eventHandler := handlers.NewEventHandler(app, feedService, engagementService)
	ticketHandler := handlers.NewTicketHandler(app, feedService, inventoryService, limiter)
	webhookHandler := handlers.NewWebhookHandler(app, purchaseService, gw)

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	if cfg.EnableMetrics {
		go startMetricsServer(cfg.MetricsPort)
	}

	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Event feed
		e.Router.GET("/api/v1/events", eventHandler.ListEvents)
		e.Router.GET("/api/v1/events/{eventId}/ticket-types", eventHandler.GetTicketTypes)
		e.Router.POST("/api/v1/events/{eventId}/like", eventHandler.ToggleLike)

		// Purchases
		e.Router.POST("/api/v1/events/{eventId}/purchase", purchaseHandler.StartPurchase)
		e.Router.GET("/api/v1/purchases/{attemptId}", purchaseHandler.GetPurchase)

		// Tickets
		e.Router.GET("/api/v1/tickets", ticketHandler.MyTickets)
		e.Router.POST("/api/v1/tickets/{ticketId}/redeem", ticketHandler.RedeemTicket)

		// Gateway webhook
		e.Router.POST("/api/v1/webhooks/payment", webhookHandler.PaymentWebhook)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	return app.Start()
}

// startMetricsServer exposes Prometheus metrics on a separate port so the
// public API surface stays clean.
func startMetricsServer(port string) {
	e := echo.New()
	e.GET("/metrics", func(c echo.Context) error {
		promhttp.Handler().ServeHTTP(c.Response(), c.Request())
		return nil
	})

	srv := &http.Server{Addr: ":" + port, Handler: e}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("metrics server stopped: %v", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
