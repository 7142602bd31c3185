package paychangu

import (
	"context"
	"testing"
	"time"

	pubnub "github.com/pubnub/go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, normalizeStatus("successful"))
	assert.Equal(t, StatusSuccess, normalizeStatus("Completed"))
	assert.Equal(t, StatusFailed, normalizeStatus("cancelled"))
	assert.Equal(t, StatusPending, normalizeStatus("in-progress"))
}

func TestParseWebhook(t *testing.T) {
	tran, err := ParseWebhook([]byte(`{"tx_ref":"attempt-1","status":"successful","network":"airtel_money"}`))
	require.NoError(t, err)
	assert.Equal(t, "attempt-1", tran.TxRef)
	assert.Equal(t, StatusSuccess, tran.Status)

	_, err = ParseWebhook([]byte(`{"status":"successful"}`))
	assert.Error(t, err)

	_, err = ParseWebhook([]byte(`not json`))
	assert.Error(t, err)
}

// Shutdown ordering: the relay goroutine must be fully stopped before its
// transaction channel is closed, or a late message would send on a closed
// channel.
func TestSubscriptionStopsBeforeChannelCloses(t *testing.T) {
	sub := &subscribe{
		lis:     pubnub.NewListener(),
		ch:      make(chan *Transaction, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go sub.processSubscription(context.Background())

	sub.lis.Message <- &pubnub.PNMessage{Message: `{"tx_ref":"attempt-1","status":"successful"}`}

	select {
	case tran := <-sub.ch:
		assert.Equal(t, "attempt-1", tran.TxRef)
		assert.Equal(t, StatusSuccess, tran.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("relay message was not delivered")
	}

	close(sub.done)
	select {
	case <-sub.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription goroutine did not stop")
	}

	// Safe only because the sender has stopped.
	close(sub.ch)
}

// A message in flight while the receiver has gone away must not wedge the
// stop sequence.
func TestSubscriptionStopUnblocksPendingSend(t *testing.T) {
	sub := &subscribe{
		lis:     pubnub.NewListener(),
		ch:      make(chan *Transaction), // nobody reading
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go sub.processSubscription(context.Background())

	sub.lis.Message <- &pubnub.PNMessage{Message: `{"tx_ref":"attempt-2","status":"successful"}`}

	close(sub.done)
	select {
	case <-sub.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not unblock the pending send")
	}
}
