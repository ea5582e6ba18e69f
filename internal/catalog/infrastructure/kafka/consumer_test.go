package kafka

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	inventory "github.com/dmehra2102/pos-order-engine/internal/inventory/domain"
	"github.com/dmehra2102/pos-order-engine/pkg/logging"
	"github.com/dmehra2102/pos-order-engine/pkg/outbox"
)

type sliceReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *sliceReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, context.Canceled
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *sliceReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *sliceReader) Close() error { return nil }

type memDeduper map[string]bool

func (d memDeduper) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("%s:%d:%d", topic, partition, offset)
}

func (d memDeduper) Seen(_ context.Context, key string) (bool, error) {
	seen := d[key]
	d[key] = true
	return seen, nil
}

type recorder struct {
	refreshed []catalog.ProductID
	low       []catalog.ProductID
}

func (r *recorder) Refresh(_ context.Context, ids ...catalog.ProductID) {
	r.refreshed = append(r.refreshed, ids...)
}

func (r *recorder) LowStock(_ context.Context, id catalog.ProductID) {
	r.low = append(r.low, id)
}

func message(t *testing.T, offset int64, eventType string, payload any) kafka.Message {
	t.Helper()
	ev, err := outbox.NewEvent("product", "1", eventType, payload)
	require.NoError(t, err)
	msg := outbox.NewDispatcher(logging.Discard(), nil, "pos.events").Message(ev)
	msg.Offset = offset
	return msg
}

func TestConsumerRefreshesCatalog(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	committed := message(t, 1, inventory.EventStockCommitted, inventory.StockCommitted{Remaining: map[catalog.ProductID]int{1: 3, 2: 7}})
	reader := &sliceReader{cancel: cancel, msgs: []kafka.Message{
		committed,
		committed,
		message(t, 2, inventory.EventStockAdjusted, inventory.StockAdjusted{ProductID: 4, Mode: inventory.AdjustAdd, Quantity: 5, Resulting: 9, Reason: "delivery"}),
		message(t, 3, inventory.EventLowStock, inventory.LowStock{ProductID: 1, Available: 2, Threshold: 3}),
		{Offset: 4, Value: []byte("not json"), Headers: []kafka.Header{{Key: outbox.EventTypeHeader, Value: []byte(inventory.EventLowStock)}}},
	}}
	rec := &recorder{}
	c := NewConsumer(logging.Discard(), reader, rec, memDeduper{})

	require.NoError(t, c.Run(ctx))

	sort.Slice(rec.refreshed, func(i, j int) bool { return rec.refreshed[i] < rec.refreshed[j] })
	assert.Equal(t, []catalog.ProductID{1, 2, 4}, rec.refreshed)
	assert.Equal(t, []catalog.ProductID{1}, rec.low)
	assert.Equal(t, []int64{1, 1, 2, 3, 4}, reader.committed)
}
