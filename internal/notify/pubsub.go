package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// PubSubNotifier publishes notices to a Google Cloud Pub/Sub topic as JSON
// messages; downstream delivery (mail, chat) is somebody else's problem.
type PubSubNotifier struct {
	topic *pubsub.Topic
}

// NewPubSubNotifier creates a notifier publishing to the named topic.
func NewPubSubNotifier(client *pubsub.Client, topic string) (*PubSubNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic name is required")
	}
	return &PubSubNotifier{topic: client.Topic(topic)}, nil
}

type noticePayload struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

// Notify publishes the notice and waits for the server acknowledgement.
func (n *PubSubNotifier) Notify(ctx context.Context, recipients []string, subject, body string) error {
	data, err := json.Marshal(noticePayload{
		Recipients: recipients,
		Subject:    subject,
		Body:       body,
	})
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	result := n.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notice: %w", err)
	}
	return nil
}
