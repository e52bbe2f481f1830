package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"rewardledger/internal/service/loyalty/application"
	"rewardledger/internal/service/loyalty/domain"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      chan kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type recordingProcessor struct {
	mu   sync.Mutex
	reqs []*application.PurchaseRequest
}

func (p *recordingProcessor) ProcessPurchase(_ context.Context, req *application.PurchaseRequest) (*application.PurchaseResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	if req.Category == "explode" {
		panic("processor blew up")
	}
	if req.Amount <= 0 {
		return nil, domain.Validationf("amount must be > 0")
	}
	return &application.PurchaseResult{CustomerID: req.CustomerID}, nil
}

func (p *recordingProcessor) requests() []*application.PurchaseRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*application.PurchaseRequest(nil), p.reqs...)
}

func TestPurchaseConsumer_ProcessesAndCommits(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 3)}
	processor := &recordingProcessor{}
	consumer := newPurchaseConsumer(reader, processor, "purchases")

	valid, err := json.Marshal(domain.PurchaseRequested{
		EventID: "evt-1", CustomerID: "cust-1", AdminID: "admin-1",
		Amount: 250, Category: "Books", RedeemPoints: 10, PaymentRef: "pay-1",
	})
	require.NoError(t, err)
	rejected, err := json.Marshal(domain.PurchaseRequested{EventID: "evt-2", CustomerID: "cust-1", AdminID: "admin-1"})
	require.NoError(t, err)

	reader.msgs <- kafka.Message{Offset: 1, Value: valid}
	reader.msgs <- kafka.Message{Offset: 2, Value: []byte("{not json")}
	reader.msgs <- kafka.Message{Offset: 3, Value: rejected}

	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)

	require.Eventually(t, func() bool { return reader.committedCount() == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	consumer.Stop()

	reqs := processor.requests()
	require.Len(t, reqs, 2)
	require.Equal(t, &application.PurchaseRequest{
		CustomerID: "cust-1", AdminID: "admin-1", Amount: 250,
		Category: "Books", RedeemPoints: 10, PaymentRef: "pay-1",
	}, reqs[0])
}

func TestPurchaseConsumer_PanicDoesNotStopLoop(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 2)}
	processor := &recordingProcessor{}
	consumer := newPurchaseConsumer(reader, processor, "purchases")

	bad, err := json.Marshal(domain.PurchaseRequested{EventID: "evt-1", CustomerID: "cust-1", AdminID: "admin-1", Amount: 10, Category: "explode"})
	require.NoError(t, err)
	good, err := json.Marshal(domain.PurchaseRequested{EventID: "evt-2", CustomerID: "cust-2", AdminID: "admin-1", Amount: 10, Category: "Books"})
	require.NoError(t, err)
	reader.msgs <- kafka.Message{Offset: 1, Value: bad}
	reader.msgs <- kafka.Message{Offset: 2, Value: good}

	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)

	require.Eventually(t, func() bool { return reader.committedCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	consumer.Stop()

	reqs := processor.requests()
	require.Len(t, reqs, 2)
	require.Equal(t, "cust-2", reqs[1].CustomerID)
}
