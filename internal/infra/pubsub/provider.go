package pubsub

import (
	"context"
	"log/slog"
	"time"

	"userapi/config"
	"userapi/internal/domain/constants"
	"userapi/internal/domain/entity"
	"userapi/internal/domain/lifecycle"
	"userapi/internal/domain/service"
	"userapi/internal/errors"

	"go.uber.org/fx"
)

const defaultPublishTimeout = 5 * time.Second

// noopPublisher is a no-op implementation when event publishing is disabled
type noopPublisher struct {
	logger *slog.Logger
}

func (p *noopPublisher) PublishUserEvent(ctx context.Context, event *entity.UserEvent) error {
	p.logger.DebugContext(ctx, "[NoopPubSub] Event publishing disabled, skipping",
		slog.String("type", string(event.Type)),
		slog.Int64("user_id", event.UserID),
	)

	return nil
}

func (p *noopPublisher) Close() error {
	return nil
}

// timeoutPublisher bounds every publish call of the wrapped publisher.
type timeoutPublisher struct {
	next    service.EventPublisher
	timeout time.Duration
}

func (p *timeoutPublisher) PublishUserEvent(ctx context.Context, event *entity.UserEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.next.PublishUserEvent(ctx, event)
}

func (p *timeoutPublisher) Close() error {
	return p.next.Close()
}

// PublisherParams holds dependencies for EventPublisher, injected by Fx
type PublisherParams struct {
	fx.In

	Lc     fx.Lifecycle
	Config *config.Config
	Logger *slog.Logger
}

// NewEventPublisher creates an EventPublisher based on configuration
func NewEventPublisher(params PublisherParams) (service.EventPublisher, error) {
	cfg := params.Config.PubSub
	logger := params.Logger

	if cfg == nil || cfg.Provider == constants.PubSubProviderNone {
		logger.Info("PubSub not configured, using no-op publisher")

		return &noopPublisher{logger: logger}, nil
	}

	publisher, err := newProviderPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}

	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	publisher = &timeoutPublisher{next: publisher, timeout: timeout}

	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing EventPublisher", slog.String("provider", cfg.Provider))

			return publisher.Close()
		},
	})

	return publisher, nil
}

func newProviderPublisher(cfg *config.PubSubConfig, logger *slog.Logger) (service.EventPublisher, error) {
	switch cfg.Provider {
	case constants.PubSubProviderLocal:
		if cfg.LocalEndpoint == "" {
			return nil, errors.New("local endpoint is required for local provider")
		}
		logger.Info("Using local HTTP publisher for Pub/Sub",
			slog.String("endpoint", cfg.LocalEndpoint),
		)

		return NewLocalHTTPPublisher(cfg.LocalEndpoint, logger), nil

	case constants.PubSubProviderGoogle:
		if cfg.ProjectID == "" {
			return nil, errors.New("project ID is required for google provider")
		}
		if cfg.TopicID == "" {
			return nil, errors.New("topic ID is required for google provider")
		}

		ctx, cancel := context.WithTimeout(context.Background(), lifecycle.DefaultTimeout)
		defer cancel()

		return NewGooglePubSubPublisher(ctx, cfg.ProjectID, cfg.TopicID, logger)

	case constants.PubSubProviderKafka:
		if len(cfg.Brokers) == 0 {
			return nil, errors.New("brokers are required for kafka provider")
		}
		if cfg.TopicID == "" {
			return nil, errors.New("topic ID is required for kafka provider")
		}

		return NewKafkaPublisher(cfg.Brokers, cfg.TopicID, logger), nil

	case constants.PubSubProviderNATS:
		if cfg.URL == "" {
			return nil, errors.New("url is required for nats provider")
		}
		if cfg.TopicID == "" {
			return nil, errors.New("topic ID is required for nats provider")
		}

		return NewNATSPublisher(cfg.URL, cfg.TopicID, logger)

	default:
		return nil, errors.Errorf("unknown pubsub provider: %s", cfg.Provider)
	}
}

// Module provides the Pub/Sub FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewEventPublisher),
)
