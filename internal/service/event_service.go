package service

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/VeritasFi/aegis/internal/model"
)

// EventService is the sink behind every ledger. Each recorded event fans out
// to a daily JSONL file, the optional postgres repo, the in-memory ring
// buffer serving reads, and the websocket hub. Recording never blocks a
// ledger mutation: a full channel drops the persistence write (the ring
// buffer copy is already taken).
type EventService struct {
	eventChan chan *model.Event
	logFile   *os.File
	buffer    *eventBuffer
	repo      EventRepo
	hub       *Hub

	wg sync.WaitGroup
}

type EventRepo interface {
	Insert(ctx context.Context, e *model.Event) error
	List(ctx context.Context, ledgerName, entity string, limit int, from, to *time.Time) ([]*model.Event, error)
}

func NewEventService(logDir string, repo EventRepo, hub *Hub) (*EventService, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	filename := filepath.Join(logDir, "events-"+time.Now().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	svc := &EventService{
		eventChan: make(chan *model.Event, 1000),
		logFile:   f,
		buffer:    newEventBuffer(1000),
		repo:      repo,
		hub:       hub,
	}

	svc.wg.Add(1)
	go svc.processEvents()

	return svc, nil
}

// Record implements ledger.EventSink.
func (s *EventService) Record(e *model.Event) {
	if s.buffer != nil {
		s.buffer.Add(e)
	}
	if s.hub != nil {
		s.hub.Broadcast(e)
	}
	select {
	case s.eventChan <- e:
	default:
		log.Println("event buffer full, dropping persistence write")
	}
}

// List serves the query endpoint, preferring the repo when one is wired.
func (s *EventService) List(ctx context.Context, ledgerName, entity string, limit int, from, to *time.Time) ([]*model.Event, error) {
	if s.repo != nil {
		events, err := s.repo.List(ctx, ledgerName, entity, limit, from, to)
		if err == nil {
			return events, nil
		}
	}
	if s.buffer == nil {
		return nil, nil
	}
	return s.buffer.List(ledgerName, entity, limit), nil
}

func (s *EventService) processEvents() {
	defer s.wg.Done()
	encoder := json.NewEncoder(s.logFile)
	for e := range s.eventChan {
		if s.repo != nil {
			if err := s.repo.Insert(context.Background(), e); err != nil {
				log.Printf("failed to write event to DB: %v", err)
			}
		}
		if err := encoder.Encode(e); err != nil {
			log.Printf("failed to write event: %v", err)
		}
	}
}

func (s *EventService) Close() {
	close(s.eventChan)
	s.wg.Wait()
	s.logFile.Close()
}

// eventBuffer is a fixed-size ring holding the most recent events.
type eventBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.Event
	nextIndex int
}

func newEventBuffer(maxSize int) *eventBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &eventBuffer{
		maxSize: maxSize,
		records: make([]*model.Event, 0, maxSize),
	}
}

func (b *eventBuffer) Add(e *model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, e)
		return
	}
	b.records[b.nextIndex] = e
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

func (b *eventBuffer) List(ledgerName, entity string, limit int) []*model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.Event, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		e := b.records[idx]
		if e == nil {
			continue
		}
		if ledgerName != "" && e.Ledger != ledgerName {
			continue
		}
		if entity != "" && e.Entity != entity {
			continue
		}
		results = append(results, e)
		if len(results) >= limit {
			break
		}
	}
	return results
}
