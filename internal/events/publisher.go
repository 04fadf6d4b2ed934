package events

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/permgate/permgate/internal/models"
	"github.com/permgate/permgate/internal/store"
)

// Event is the data a caller supplies when publishing a domain event.
type Event struct {
	Type     models.EventType
	Severity models.EventSeverity
	ActorID  string
	ClientID string
	TargetID string
	Details  models.EventDetails
}

// Publisher is the fire-and-forget domain event sink. Publish never blocks
// the issuing path: events go through a buffered channel to a single worker
// that batches writes. Delivery is at-least-once from the caller's view and
// events may be dropped when the buffer is saturated.
type Publisher struct {
	store      *store.Store
	enabled    bool
	bufferSize int

	eventChan chan *models.DomainEvent

	batchBuffer []models.DomainEvent
	batchMutex  sync.Mutex
	batchTicker *time.Ticker

	wg         sync.WaitGroup
	shutdownCh chan struct{}
}

// NewPublisher creates an event publisher and starts its worker when enabled.
func NewPublisher(s *store.Store, enabled bool, bufferSize int) *Publisher {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	p := &Publisher{
		store:       s,
		enabled:     enabled,
		bufferSize:  bufferSize,
		eventChan:   make(chan *models.DomainEvent, bufferSize),
		batchBuffer: make([]models.DomainEvent, 0, 100),
		shutdownCh:  make(chan struct{}),
	}

	if enabled {
		// The flush ticker only exists alongside the worker; a disabled
		// publisher must not hold a live runtime timer.
		p.batchTicker = time.NewTicker(1 * time.Second)
		p.wg.Add(1)
		go p.worker()
		log.Printf("[Events] publisher started with buffer size %d", bufferSize)
	} else {
		log.Println("[Events] publisher is disabled")
	}

	return p
}

func (p *Publisher) worker() {
	defer p.wg.Done()

	for {
		select {
		case ev := <-p.eventChan:
			p.addToBatch(ev)

		case <-p.batchTicker.C:
			p.flushBatch()

		case <-p.shutdownCh:
			// Drain whatever is still queued, then flush.
			for {
				select {
				case ev := <-p.eventChan:
					p.addToBatch(ev)
				default:
					p.flushBatch()
					return
				}
			}
		}
	}
}

func (p *Publisher) addToBatch(ev *models.DomainEvent) {
	p.batchMutex.Lock()
	defer p.batchMutex.Unlock()

	p.batchBuffer = append(p.batchBuffer, *ev)

	if len(p.batchBuffer) >= 100 {
		p.flushBatchUnsafe()
	}
}

func (p *Publisher) flushBatch() {
	p.batchMutex.Lock()
	defer p.batchMutex.Unlock()
	p.flushBatchUnsafe()
}

// flushBatchUnsafe writes the batch without locking (caller must hold lock)
func (p *Publisher) flushBatchUnsafe() {
	if len(p.batchBuffer) == 0 {
		return
	}

	toWrite := make([]models.DomainEvent, len(p.batchBuffer))
	copy(toWrite, p.batchBuffer)
	p.batchBuffer = p.batchBuffer[:0]

	if err := p.store.SaveEvents(toWrite); err != nil {
		log.Printf("[Events] failed to write event batch: %v", err)
	}
}

// Publish queues an event without blocking. Full buffer drops the event.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if !p.enabled {
		return
	}

	domainEvent := &models.DomainEvent{
		ID:        uuid.New().String(),
		Type:      event.Type,
		Severity:  event.Severity,
		ActorID:   event.ActorID,
		ClientID:  event.ClientID,
		TargetID:  event.TargetID,
		Details:   maskSensitiveDetails(event.Details),
		CreatedAt: time.Now(),
	}

	select {
	case p.eventChan <- domainEvent:
	default:
		log.Printf("WARNING: event buffer full, dropping event: %s", event.Type)
	}
}

// Close flushes pending events and stops the worker.
func (p *Publisher) Close(ctx context.Context) error {
	if !p.enabled {
		return nil
	}

	p.batchTicker.Stop()
	close(p.shutdownCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[Events] publisher shut down gracefully")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout: %w", ctx.Err())
	}
}

// maskSensitiveDetails masks credential material in event details.
func maskSensitiveDetails(details models.EventDetails) models.EventDetails {
	if details == nil {
		return details
	}

	masked := make(models.EventDetails)
	for key, value := range details {
		if isSensitiveField(key) {
			masked[key] = "***REDACTED***"
			continue
		}

		if isPartialMaskField(key) {
			if str, ok := value.(string); ok && len(str) > 12 {
				masked[key] = str[:8] + "..." + str[len(str)-4:]
				continue
			}
		}

		masked[key] = value
	}

	return masked
}

func isSensitiveField(key string) bool {
	key = strings.ToLower(key)
	sensitiveFields := []string{
		"password",
		"client_secret",
		"token",
		"access_token",
		"refresh_token",
		"secret",
		"code_verifier",
	}

	for _, field := range sensitiveFields {
		if strings.Contains(key, field) {
			return true
		}
	}
	return false
}

func isPartialMaskField(key string) bool {
	key = strings.ToLower(key)
	partialMaskFields := []string{
		"device_code",
		"token_id",
		"ticket_id",
	}

	for _, field := range partialMaskFields {
		if strings.Contains(key, field) {
			return true
		}
	}
	return false
}
