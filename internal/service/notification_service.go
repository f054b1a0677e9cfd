package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Notification kinds understood by the notifier.
const (
	NotifyAppointmentBooked    = "appointment_booked"
	NotifyAppointmentStatus    = "appointment_status"
	NotifyPrescriptionIssued   = "prescription_issued"
	NotifyLowStock             = "inventory_low_stock"
	NotifyExpiringStock        = "inventory_expiring"
	defaultNotificationTimeout = 5 * time.Second
)

// Notifier delivers a templated message to an address.
type Notifier interface {
	Notify(ctx context.Context, address, kind string, payload map[string]interface{}) error
}

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, address, kind string, payload map[string]interface{}) error {
	n.log.WithFields(logrus.Fields{
		"address": address,
		"kind":    kind,
		"payload": payload,
	}).Info("Notification dispatched")
	return nil
}

// NotificationService sends notifications fire-and-forget. Delivery failures
// are logged and never reach the caller.
type NotificationService struct {
	notifier Notifier
	log      *logrus.Logger
	timeout  time.Duration

	// mu orders wg.Add against Stop's wg.Wait
	mu      sync.Mutex
	wg      sync.WaitGroup
	stopped bool
}

func NewNotificationService(notifier Notifier, log *logrus.Logger, timeout time.Duration) *NotificationService {
	if timeout <= 0 {
		timeout = defaultNotificationTimeout
	}
	return &NotificationService{
		notifier: notifier,
		log:      log,
		timeout:  timeout,
	}
}

// Dispatch returns immediately. An empty address is skipped.
func (s *NotificationService) Dispatch(address, kind string, payload map[string]interface{}) {
	if address == "" {
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.notifier.Notify(ctx, address, kind, payload); err != nil {
			s.log.Warnf("Failed to send %s notification to %s: %+v", kind, address, err)
		}
	}()
}

// Stop waits for in-flight notifications. Safe to call multiple times.
func (s *NotificationService) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("NotificationService stopped")
}

// Wait blocks until every dispatched notification has finished.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}
