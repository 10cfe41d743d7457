package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/denisok6893-rgb/condo-unit-matching/internal/domain"
	"github.com/denisok6893-rgb/condo-unit-matching/internal/storage"
)

// errMalformed marks events that can never be processed; they are skipped.
var errMalformed = errors.New("malformed change event")

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Store is the read side of storage.Repository the consumer needs.
type Store interface {
	GetUnit(ctx context.Context, id string) (domain.Unit, bool, error)
	ListUnits(ctx context.Context, f storage.UnitFilter) ([]domain.Unit, int, error)
	GetLead(ctx context.Context, id string) (domain.Lead, bool, error)
	ListLeads(ctx context.Context, projectID string) ([]domain.Lead, error)
}

type Ranker interface {
	RankLead(ctx context.Context, lead domain.Lead, units []domain.Unit) ([]domain.RankedUnit, error)
}

type MatchPublisher interface {
	PublishMatches(ctx context.Context, m MatchesUpdated) error
}

// Consumer re-ranks affected leads whenever a unit or lead changes and
// publishes their fresh match lists.
type Consumer struct {
	reader    messageReader
	store     Store
	ranker    Ranker
	publisher MatchPublisher
	now       func() time.Time
}

func NewConsumer(brokers []string, groupID, topic string, store Store, ranker Ranker, publisher MatchPublisher) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newConsumer(reader, store, ranker, publisher)
}

func newConsumer(reader messageReader, store Store, ranker Ranker, publisher MatchPublisher) *Consumer {
	return &Consumer{
		reader:    reader,
		store:     store,
		ranker:    ranker,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run processes events until ctx is cancelled. A message is committed only
// after it was handled or found malformed; any other failure stops the loop
// so the message is redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	log.Info("change consumer started")
	defer log.Info("change consumer stopped")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch change event: %w", err)
		}

		if err := c.Handle(ctx, msg.Value); err != nil {
			if !errors.Is(err, errMalformed) {
				return err
			}
			log.WithError(err).WithFields(log.Fields{
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).Warn("skipping change event")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit change event: %w", err)
		}
	}
}

// Handle decodes one change event and publishes the affected match lists.
func (c *Consumer) Handle(ctx context.Context, payload []byte) error {
	var ev ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if ev.ID == "" {
		return fmt.Errorf("%w: missing id", errMalformed)
	}

	logger := log.WithFields(log.Fields{"entity": ev.Entity, "id": ev.ID, "op": ev.Op})

	switch ev.Entity {
	case EntityLead:
		if ev.Op == OpDelete {
			logger.Debug("lead removed, clearing matches")
			return c.publish(ctx, ev.ID, ev.ProjectID, nil)
		}
		lead, found, err := c.store.GetLead(ctx, ev.ID)
		if err != nil {
			return fmt.Errorf("load lead %s: %w", ev.ID, err)
		}
		if !found {
			logger.Debug("lead vanished before re-scoring")
			return c.publish(ctx, ev.ID, ev.ProjectID, nil)
		}
		return c.rescoreLead(ctx, lead)

	case EntityUnit:
		projects := []string{ev.ProjectID}
		if ev.Op != OpDelete {
			u, found, err := c.store.GetUnit(ctx, ev.ID)
			if err != nil {
				return fmt.Errorf("load unit %s: %w", ev.ID, err)
			}
			if found {
				projects[0] = u.ProjectID
			}
		}
		if ev.PreviousProjectID != "" && ev.PreviousProjectID != projects[0] {
			projects = append(projects, ev.PreviousProjectID)
		}
		leads, err := c.affectedLeads(ctx, projects)
		if err != nil {
			return err
		}
		logger.WithFields(log.Fields{"projects": projects, "leads": len(leads)}).Debug("re-scoring affected leads")
		for _, lead := range leads {
			if err := c.rescoreLead(ctx, lead); err != nil {
				return err
			}
		}
		return nil
	}

	return fmt.Errorf("%w: unknown entity %q", errMalformed, ev.Entity)
}

// affectedLeads returns the leads whose ranking can contain a unit of one of
// projects: leads of those projects plus leads with no project, which are
// ranked against every unit.
func (c *Consumer) affectedLeads(ctx context.Context, projects []string) ([]domain.Lead, error) {
	all, err := c.store.ListLeads(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	want := map[string]bool{"": true}
	for _, p := range projects {
		want[p] = true
	}
	var out []domain.Lead
	for _, l := range all {
		if want[l.ProjectID] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (c *Consumer) rescoreLead(ctx context.Context, lead domain.Lead) error {
	units, _, err := c.store.ListUnits(ctx, storage.UnitFilter{ProjectID: lead.ProjectID})
	if err != nil {
		return fmt.Errorf("list units for lead %s: %w", lead.ID, err)
	}
	ranked, err := c.ranker.RankLead(ctx, lead, units)
	if err != nil {
		return fmt.Errorf("rank lead %s: %w", lead.ID, err)
	}
	return c.publish(ctx, lead.ID, lead.ProjectID, ranked)
}

func (c *Consumer) publish(ctx context.Context, leadID, projectID string, ranked []domain.RankedUnit) error {
	return c.publisher.PublishMatches(ctx, MatchesUpdated{
		LeadID:    leadID,
		ProjectID: projectID,
		Matches:   summarize(ranked),
		At:        c.now(),
	})
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
