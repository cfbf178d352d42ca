package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cloud.google.com/go/pubsub"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/JakeFAU/rosterctl/internal/publisher"
)

type fakeResult struct {
	id  string
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	return r.id, r.err
}

type fakeTopic struct {
	msgs    []*pubsub.Message
	err     error
	stopped bool
}

func (f *fakeTopic) Publish(_ context.Context, msg *pubsub.Message) publishResult {
	f.msgs = append(f.msgs, msg)
	return fakeResult{id: "msg-1", err: f.err}
}

func (f *fakeTopic) Stop() {
	f.stopped = true
}

func TestPublishEncodesPayload(t *testing.T) {
	t.Parallel()

	topic := &fakeTopic{}
	p := &Publisher{topic: topic, name: "export-runs"}

	id, err := p.Publish(context.Background(), "run.finished", publisher.RunFinished{JobID: "abc", Outcome: "completed"})
	require.NoError(t, err)
	require.Equal(t, "msg-1", id)
	require.Len(t, topic.msgs, 1)
	require.Equal(t, "run.finished", topic.msgs[0].Attributes["event"])

	var got publisher.RunFinished
	require.NoError(t, json.Unmarshal(topic.msgs[0].Data, &got))
	require.Equal(t, "abc", got.JobID)
	require.Equal(t, "completed", got.Outcome)

	require.NoError(t, p.Close())
	require.True(t, topic.stopped)
}

func TestPublishSurfacesResultErrors(t *testing.T) {
	t.Parallel()

	p := &Publisher{topic: &fakeTopic{err: errors.New("quota")}}
	_, err := p.Publish(context.Background(), "run.finished", map[string]string{"k": "v"})
	require.ErrorContains(t, err, "quota")
}

func TestPublishRequiresTopic(t *testing.T) {
	t.Parallel()

	var p *Publisher
	_, err := p.Publish(context.Background(), "run.finished", nil)
	require.Error(t, err)

	_, err = New(context.Background(), "", "")
	require.Error(t, err)
}

func TestCarrierRoundTrip(t *testing.T) {
	t.Parallel()

	c := &pubsubCarrier{attrs: map[string]string{}}
	var _ propagation.TextMapCarrier = c
	c.Set("traceparent", "00-abc")
	require.Equal(t, "00-abc", c.Get("traceparent"))
	require.Equal(t, []string{"traceparent"}, c.Keys())
	require.NotNil(t, otel.GetTextMapPropagator())
}
