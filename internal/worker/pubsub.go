package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Receive settings. Jobs are few and long, so deliveries are throttled and
// leases extended well past the refresh timeout.
const (
	maxOutstandingJobs = 4
	maxLeaseExtension  = 10 * time.Minute
)

// PubSubHandler runs jobs triggered through a Pub/Sub subscription, usually
// published by Cloud Scheduler.
type PubSubHandler struct {
	client       *pubsub.Client
	sub          *pubsub.Subscriber
	subscription string
	dispatcher   *Dispatcher
	log          zerolog.Logger
}

// PubSubConfig names the subscription to pull jobs from.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler connects to Pub/Sub. Nothing is received until Start.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client for project %s: %w", cfg.ProjectID, err)
	}

	sub := client.Subscriber(cfg.SubscriptionName)
	sub.ReceiveSettings.MaxOutstandingMessages = maxOutstandingJobs
	sub.ReceiveSettings.MaxExtension = maxLeaseExtension

	return &PubSubHandler{
		client:       client,
		sub:          sub,
		subscription: cfg.SubscriptionName,
		dispatcher:   cfg.Dispatcher,
		log:          cfg.Logger.With().Str("subscription", cfg.SubscriptionName).Logger(),
	}, nil
}

// Start receives jobs until ctx is canceled. Failed jobs are nacked for
// redelivery; see Acknowledge.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.log.Info().Msg("receiving jobs")
	return h.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if Acknowledge(h.handle(ctx, msg)) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close releases the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handle(ctx context.Context, msg *pubsub.Message) error {
	start := time.Now()
	log := h.log.With().
		Str("message_id", msg.ID).
		Time("published", msg.PublishTime).
		Logger()

	jobType, err := h.dispatcher.Dispatch(ctx, payload(msg))
	event := log.Info()
	if err != nil {
		event = log.Error().Err(err)
	}
	event.
		Str("job_type", jobType).
		Dur("duration", time.Since(start)).
		Bool("ack", Acknowledge(err)).
		Msg("job finished")
	return err
}

// payload returns the message body. Cloud Scheduler triggers may carry the
// job type as an attribute with an empty body instead.
func payload(msg *pubsub.Message) []byte {
	if len(msg.Data) > 0 {
		return msg.Data
	}
	if jobType := msg.Attributes["job_type"]; jobType != "" {
		data, _ := json.Marshal(JobMessage{JobType: jobType})
		return data
	}
	return msg.Data
}

// Acknowledge reports whether a message that ended with err should be acked.
// Unparseable and unknown messages are acked so they are not redelivered.
func Acknowledge(err error) bool {
	return err == nil || errors.Is(err, ErrMalformedMessage) || errors.Is(err, ErrUnknownJob)
}
