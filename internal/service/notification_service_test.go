package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingNotifier struct {
	calls atomic.Int64
}

func (n *countingNotifier) Notify(ctx context.Context, address, kind string, payload map[string]interface{}) error {
	n.calls.Add(1)
	return nil
}

func TestNotificationService_StopWhileDispatching(t *testing.T) {
	notifier := &countingNotifier{}
	notifications := NewNotificationService(notifier, newTestLogger(), time.Second)

	var senders sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		senders.Add(1)
		go func() {
			defer senders.Done()
			<-start
			for j := 0; j < 50; j++ {
				notifications.Dispatch("p@x.test", NotifyPrescriptionIssued, nil)
			}
		}()
	}

	close(start)
	notifications.Stop()
	delivered := notifier.calls.Load()

	// Nothing dispatched after Stop returned may still be delivered
	senders.Wait()
	notifications.Wait()
	assert.Equal(t, delivered, notifier.calls.Load())
	assert.LessOrEqual(t, delivered, int64(400))

	notifications.Stop()
}
