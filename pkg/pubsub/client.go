package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/microgem/storefront-backend/pkg/config"
	"github.com/microgem/storefront-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("orders topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client owns the Pub/Sub connection used for storefront domain events.
type Client struct {
	ps          *pubsub.Client
	ordersTopic string
}

// NewClient dials Pub/Sub and refuses to start when the orders topic is
// missing, so misconfiguration surfaces at boot rather than on first order.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger, opts ...option.ClientOption) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topic := topicName(project, cfg.OrdersTopic)
	if topic == "" {
		return nil, errTopicRequired
	}

	ps, err := pubsub.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{ps: ps, ordersTopic: topic}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", topic), "pubsub client initialized")
	}
	return c, nil
}

// OrdersPublisher returns the publisher for order events.
func (c *Client) OrdersPublisher() *pubsub.Publisher {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Publisher(c.ordersTopic)
}

// Ping checks that the orders topic still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errNotInitialized
	}
	_, err := c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.ordersTopic})
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %q does not exist", c.ordersTopic)
	case err != nil:
		return fmt.Errorf("checking topic %q: %w", c.ordersTopic, err)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}

// topicName expands a short topic id to its resource name. Fully qualified
// names pass through unchanged.
func topicName(project, topic string) string {
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return ""
	case strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/"):
		return topic
	default:
		return "projects/" + project + "/topics/" + topic
	}
}
