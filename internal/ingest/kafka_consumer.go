package ingest

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/example/visit-trip-linker/internal/models"
	"github.com/example/visit-trip-linker/internal/observability"
)

// MessageReader is the subset of kafka.Reader used by EventConsumer.
// Offsets are committed explicitly once buffered events have been linked.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type partitionKey struct {
	topic     string
	partition int
}

// Buffer collects validated events until the next linker run drains them,
// along with the newest message read on every topic partition.
type Buffer struct {
	mu      sync.Mutex
	visits  []models.Visit
	legs    []models.TripLeg
	offsets map[partitionKey]kafka.Message
}

// Pending is a drained batch plus the messages whose offsets may be
// committed once the batch is linked.
type Pending struct {
	Batch    models.Batch
	Messages []kafka.Message
}

func (p Pending) Empty() bool {
	return len(p.Batch.Visits) == 0 && len(p.Batch.TripLegs) == 0 && len(p.Messages) == 0
}

func (b *Buffer) AddVisit(v models.Visit) {
	b.mu.Lock()
	b.visits = append(b.visits, v)
	b.mu.Unlock()
}

func (b *Buffer) AddTripLeg(l models.TripLeg) {
	b.mu.Lock()
	b.legs = append(b.legs, l)
	b.mu.Unlock()
}

// Track records m as read. Call it after the message's event, if any, has
// been added so a drain never carries an offset ahead of its events.
func (b *Buffer) Track(m kafka.Message) {
	b.mu.Lock()
	b.track(m)
	b.mu.Unlock()
}

func (b *Buffer) track(m kafka.Message) {
	if b.offsets == nil {
		b.offsets = make(map[partitionKey]kafka.Message)
	}
	k := partitionKey{m.Topic, m.Partition}
	if prev, ok := b.offsets[k]; !ok || m.Offset > prev.Offset {
		b.offsets[k] = m
	}
}

// Len counts buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.visits) + len(b.legs)
}

// Drain returns everything buffered so far, events in arrival order and
// messages ordered by topic and partition, and empties the buffer.
func (b *Buffer) Drain() Pending {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := Pending{Batch: models.Batch{Visits: b.visits, TripLegs: b.legs}}
	for _, m := range b.offsets {
		out.Messages = append(out.Messages, m)
	}
	slices.SortFunc(out.Messages, func(x, y kafka.Message) int {
		return cmp.Or(cmp.Compare(x.Topic, y.Topic), cmp.Compare(x.Partition, y.Partition))
	})
	b.visits, b.legs, b.offsets = nil, nil, nil
	return out
}

// Requeue puts a batch that could not be linked back in front of anything
// that arrived since it was drained. Its offsets stay uncommitted.
func (b *Buffer) Requeue(p Pending) {
	b.mu.Lock()
	defer b.mu.Unlock()
	visits, legs := p.Batch.Visits, p.Batch.TripLegs
	b.visits = append(visits[:len(visits):len(visits)], b.visits...)
	b.legs = append(legs[:len(legs):len(legs)], b.legs...)
	for _, m := range p.Messages {
		b.track(m)
	}
}

// EventConsumer reads visit and trip-leg events from their topics into a
// Buffer.
type EventConsumer struct {
	Visits      MessageReader
	Trips       MessageReader
	VisitsTopic string
	TripsTopic  string
	Buffer      *Buffer
	Logger      *slog.Logger

	MaxBackoff time.Duration
}

func NewKafkaConsumer(brokers []string, group, visitsTopic, tripsTopic string, logger *slog.Logger) *EventConsumer {
	reader := func(topic string) *kafka.Reader {
		return kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	}
	return &EventConsumer{
		Visits:      reader(visitsTopic),
		Trips:       reader(tripsTopic),
		VisitsTopic: visitsTopic,
		TripsTopic:  tripsTopic,
		Buffer:      &Buffer{},
		Logger:      logger,
		MaxBackoff:  30 * time.Second,
	}
}

// Run consumes both topics until ctx is cancelled.
func (c *EventConsumer) Run(ctx context.Context) error {
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.consume(gctx, c.Visits, c.VisitsTopic, c.handleVisit) })
	g.Go(func() error { return c.consume(gctx, c.Trips, c.TripsTopic, c.handleTripLeg) })
	return g.Wait()
}

func (c *EventConsumer) Close() error {
	var first error
	for _, r := range []MessageReader{c.Visits, c.Trips} {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Commit acknowledges msgs on the reader of their topic.
func (c *EventConsumer) Commit(ctx context.Context, msgs []kafka.Message) error {
	var visits, trips []kafka.Message
	for _, m := range msgs {
		switch m.Topic {
		case c.VisitsTopic:
			visits = append(visits, m)
		case c.TripsTopic:
			trips = append(trips, m)
		default:
			return fmt.Errorf("commit: unknown topic %q", m.Topic)
		}
	}
	var errs []error
	if len(visits) > 0 {
		if err := c.Visits.CommitMessages(ctx, visits...); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", c.VisitsTopic, err))
		}
	}
	if len(trips) > 0 {
		if err := c.Trips.CommitMessages(ctx, trips...); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", c.TripsTopic, err))
		}
	}
	return errors.Join(errs...)
}

// consume fetches without committing; offsets are committed by Commit once
// the buffered events are linked, so a crash redelivers them.
func (c *EventConsumer) consume(ctx context.Context, r MessageReader, topic string, handle func([]byte) error) error {
	maxBackoff := c.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	initial := min(time.Second, maxBackoff)
	backoff := initial

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.Logger.Warn("kafka read error", "topic", topic, "error", err, "backoff", backoff.String())
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = initial

		if m.Topic == "" {
			m.Topic = topic
		}
		err = handle(m.Value)
		c.Buffer.Track(m)
		if err != nil {
			observability.ConsumerMessages.WithLabelValues(topic, "invalid").Inc()
			c.Logger.Warn("dropping event", "topic", topic, "offset", m.Offset, "error", err)
			continue
		}
		observability.ConsumerMessages.WithLabelValues(topic, "ok").Inc()
	}
}

func (c *EventConsumer) handleVisit(b []byte) error {
	var v models.Visit
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := ValidateVisit(v); err != nil {
		return err
	}
	c.Buffer.AddVisit(v)
	return nil
}

func (c *EventConsumer) handleTripLeg(b []byte) error {
	var l models.TripLeg
	if err := json.Unmarshal(b, &l); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := ValidateTripLeg(l); err != nil {
		return err
	}
	c.Buffer.AddTripLeg(l)
	return nil
}
