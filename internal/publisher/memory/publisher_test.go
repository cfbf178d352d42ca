package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/rosterctl/internal/publisher"
)

var _ publisher.Publisher = (*Publisher)(nil)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "runs", publisher.RunFinished{JobID: "a"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "runs", publisher.RunFinished{JobID: "b"})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "a", msgs[0].Payload.(publisher.RunFinished).JobID)

	msgs[0].Topic = "modified"
	require.Equal(t, "runs", pub.Messages()[0].Topic)
}

func TestPublisherFailWith(t *testing.T) {
	t.Parallel()

	pub := New()
	pub.FailWith(errors.New("offline"))
	_, err := pub.Publish(context.Background(), "runs", "payload")
	require.EqualError(t, err, "offline")
	require.Empty(t, pub.Messages())
}
