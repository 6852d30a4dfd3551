package pubsub

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishWithoutTopic(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "leads", map[string]string{"business": "Acme"})
	require.Error(t, err)

	var p *Publisher
	p.Stop()
}

func TestAttributeCarrier(t *testing.T) {
	t.Parallel()

	c := &attributeCarrier{attrs: map[string]string{}}
	c.Set("traceparent", "00-abc-def-01")
	c.Set("topic", "leads")
	require.Equal(t, "leads", c.Get("topic"))
	keys := c.Keys()
	sort.Strings(keys)
	require.Equal(t, []string{"topic", "traceparent"}, keys)
}
