package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"road-inspector/internal/domain/entity"
)

type recordedPublish struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	published []recordedPublish
	err       error
	closed    bool
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, recordedPublish{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestRabbitPublisher_PublishesJSON(t *testing.T) {
	ch := &fakeChannel{}
	p := &RabbitPublisher{channel: ch, exchange: "roads"}

	event := entity.ReportEvent{
		RoadID:          "R1",
		ReportID:        7,
		ReportRef:       "reports/x.pdf",
		ConditionRating: 40,
		DefectCount:     2,
		GeneratedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.NotifyReport(context.Background(), event))

	require.Len(t, ch.published, 1)
	pub := ch.published[0]
	require.Equal(t, "roads", pub.exchange)
	require.Equal(t, RoutingKeyReportGenerated, pub.key)
	require.Equal(t, "application/json", pub.msg.ContentType)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.msg.Body, &decoded))
	require.Equal(t, "R1", decoded["road_id"])
	require.Equal(t, 40.0, decoded["condition_rating"])
	require.NotContains(t, decoded, "video_id")

	require.NoError(t, p.Close())
	require.True(t, ch.closed)
}

type stubNotifier struct {
	calls int
	err   error
}

func (n *stubNotifier) NotifyReport(ctx context.Context, event entity.ReportEvent) error {
	n.calls++
	return n.err
}

func TestFanout_ContinuesAfterFailure(t *testing.T) {
	failing := &stubNotifier{err: errors.New("chat blocked")}
	ok := &stubNotifier{}
	f := NewFanout(zap.NewNop(), failing)
	f.Add(ok)
	require.Equal(t, 2, f.Len())

	err := f.NotifyReport(context.Background(), entity.ReportEvent{RoadID: "R1"})
	require.Error(t, err)
	require.Equal(t, 1, failing.calls)
	require.Equal(t, 1, ok.calls)
}
