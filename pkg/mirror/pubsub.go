package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

type pubsubMirror struct {
	id     string
	typ    string
	client *pubsub.Client
	topic  *pubsub.Topic
	log    Logger
}

func newPubSubMirror(ctx context.Context, cfg MirrorConfig, log Logger) (Mirror, error) {
	if cfg.PubSub == nil {
		return nil, fmt.Errorf("mirror %q missing pubsub configuration", cfg.ID)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var opts []option.ClientOption
	if cfg.PubSub.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.PubSub.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	return &pubsubMirror{
		id:     cfg.ID,
		typ:    TypePubSub,
		client: client,
		topic:  client.Topic(cfg.PubSub.TopicID),
		log:    ensureLogger(log),
	}, nil
}

func (p *pubsubMirror) ID() string   { return p.id }
func (p *pubsubMirror) Type() string { return p.typ }

// Send publishes the event to the configured Pub/Sub topic and waits for the
// server acknowledgement.
func (p *pubsubMirror) Send(ctx context.Context, evt PublishedEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"source": evt.Source,
		},
	})

	if _, err := result.Get(ctx); err != nil {
		p.log.ErrorObj("pubsub mirror publish failed", "mirror_pubsub_error", map[string]any{
			"mirror_id": p.id,
			"error":     err.Error(),
		})
		return fmt.Errorf("publish to pubsub: %w", err)
	}
	p.log.DebugObj("pubsub mirror delivered event", "mirror_pubsub_delivery", map[string]any{
		"mirror_id": p.id,
	})
	return nil
}

// Close stops the topic publisher and releases the client.
func (p *pubsubMirror) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
