package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
)

type stubSender struct {
	mu   sync.Mutex
	sent []Message
	fail error
}

func (s *stubSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, msg)
	return nil
}

type stubRecorder struct {
	mu      sync.Mutex
	sentIDs []uuid.UUID
	failed  map[uuid.UUID]string
	done    chan struct{}
}

func newStubRecorder() *stubRecorder {
	return &stubRecorder{failed: map[uuid.UUID]string{}, done: make(chan struct{}, 1)}
}

func (r *stubRecorder) MarkEmailSent(_ context.Context, orderID uuid.UUID, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sentIDs = append(r.sentIDs, orderID)
	select {
	case r.done <- struct{}{}:
	default:
	}
	return nil
}

func (r *stubRecorder) MarkEmailFailed(_ context.Context, orderID uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[orderID] = reason
	select {
	case r.done <- struct{}{}:
	default:
	}
	return nil
}

func confirmedOrder() *models.Order {
	return &models.Order{
		ID:         uuid.New(),
		BuyerName:  "Maria Souza",
		BuyerEmail: "maria@example.com",
		TotalCents: 11000,
	}
}

func TestSendOrderConfirmation(t *testing.T) {
	sender := &stubSender{}
	recorder := newStubRecorder()
	svc, err := NewService(sender, recorder, nil)
	require.NoError(t, err)

	order := confirmedOrder()
	attendee := "Joao Lima"
	tickets := []models.TicketInstance{
		{Code: "TKT-AAAA1111BBBB2222", AttendeeName: &attendee},
		{Code: "TKT-CCCC3333DDDD4444"},
	}

	require.NoError(t, svc.SendOrderConfirmation(context.Background(), order, tickets))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "maria@example.com", msg.To)
	assert.Contains(t, msg.Body, "R$ 110.00")
	assert.Contains(t, msg.Body, "TKT-AAAA1111BBBB2222 - Joao Lima")
	// unnamed seat falls back to the buyer
	assert.Contains(t, msg.Body, "TKT-CCCC3333DDDD4444 - Maria Souza")
	assert.Equal(t, []uuid.UUID{order.ID}, recorder.sentIDs)
}

func TestSendOrderConfirmationRecordsFailure(t *testing.T) {
	sender := &stubSender{fail: errors.New("smtp timeout")}
	recorder := newStubRecorder()
	svc, err := NewService(sender, recorder, nil)
	require.NoError(t, err)

	order := confirmedOrder()
	require.NoError(t, svc.SendOrderConfirmation(context.Background(), order, nil))

	assert.Empty(t, recorder.sentIDs)
	assert.Equal(t, "smtp timeout", recorder.failed[order.ID])
}

func TestSendOrderConfirmationWithoutEmail(t *testing.T) {
	sender := &stubSender{}
	recorder := newStubRecorder()
	svc, err := NewService(sender, recorder, nil)
	require.NoError(t, err)

	order := confirmedOrder()
	order.BuyerEmail = ""
	require.NoError(t, svc.SendOrderConfirmation(context.Background(), order, nil))

	assert.Empty(t, sender.sent)
	assert.NotEmpty(t, recorder.failed[order.ID])
}

func TestDispatchOrderConfirmationAsync(t *testing.T) {
	sender := &stubSender{}
	recorder := newStubRecorder()
	svc, err := NewService(sender, recorder, nil)
	require.NoError(t, err)

	order := confirmedOrder()
	svc.DispatchOrderConfirmation(context.Background(), order, nil)

	select {
	case <-recorder.done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch never recorded an outcome")
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, []uuid.UUID{order.ID}, recorder.sentIDs)
}
