package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-orders/internal/auth"
	"github.com/imrishuroy/go-storefront-orders/internal/aws"
	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/config"
	"github.com/imrishuroy/go-storefront-orders/internal/customrequests"
	"github.com/imrishuroy/go-storefront-orders/internal/handlers"
	"github.com/imrishuroy/go-storefront-orders/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orders/internal/logging"
	"github.com/imrishuroy/go-storefront-orders/internal/metrics"
	"github.com/imrishuroy/go-storefront-orders/internal/middleware"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
	"github.com/imrishuroy/go-storefront-orders/internal/sequence"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	logger := logging.OrDefault(cfg.Logger)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(logger), middleware.Recover(logger))

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterRoutes(r, cfg)

	return r
}

// buildHandlerConfig wires stores and services over the AWS clients.
func buildHandlerConfig(cfg config.Config, clients *aws.AWSClients, logger *slog.Logger) handlers.HandlerConfig {
	catStore := catalog.NewStore(clients.DynamoDB, cfg.Tables.Products)
	idemStore := idempotency.NewStore(clients.DynamoDB, cfg.Tables.Idempotency, cfg.IdempotencyTTL)
	orderStore := orders.NewStore(clients.DynamoDB, cfg.Tables.Orders, cfg.Tables.OrdersByUser, catStore, idemStore)
	counter := sequence.NewCounter(clients.DynamoDB, cfg.Tables.Counters)
	requestStore := customrequests.NewStore(clients.DynamoDB, cfg.Tables.CustomRequests, cfg.Tables.RequestsByUser)

	opts := []orders.Option{
		orders.WithNumbers(counter),
		orders.WithKeyLookup(idemStore),
		orders.WithMetrics(metrics.NewRecorder(clients.CloudWatch, cfg.MetricsNamespace)),
		orders.WithLogger(logger),
	}
	if cfg.QueueURL != "" {
		opts = append(opts, orders.WithEvents(aws.NewPublisher(clients.SQS, cfg.QueueURL)))
	} else {
		logger.Warn("ORDERS_QUEUE_URL not set, order events disabled")
	}

	return handlers.HandlerConfig{
		Orders:         orders.NewService(catStore, orderStore, opts...),
		Catalog:        catStore,
		CustomRequests: customrequests.NewService(requestStore, counter, logger),
		Idempotency:    idemStore,
		Auth:           auth.NewVerifier(cfg.JWTSecret),
		Logger:         logger,
	}
}

func main() {
	cfg := config.FromEnv()
	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET must be set")
		os.Exit(1)
	}

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		logger.Error("failed to init aws clients", slog.Any("error", err))
		os.Exit(1)
	}

	r := setupRouter(buildHandlerConfig(cfg, clients, logger))

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if cfg.RunLocal {
		logger.Info("running local server", slog.String("addr", cfg.Addr))
		if err := r.Run(cfg.Addr); err != nil {
			logger.Error("failed to run local server", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		// the adapter handles proxying; use adapter.ProxyWithContext for proper context propagation
		return adapter.ProxyWithContext(ctx, req)
	})
}
