package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducer_PublishMatches(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w}

	err := p.PublishMatches(context.Background(), MatchesUpdated{
		LeadID:  "l1",
		Matches: []MatchSummary{{UnitID: "u1", Score: 100, Badge: "perfect", Reasons: []string{"x"}}},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "l1", string(w.msgs[0].Key))

	var got MatchesUpdated
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "u1", got.Matches[0].UnitID)
}

func TestProducer_NotifyChange(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w}

	require.NoError(t, p.NotifyChange(context.Background(), ChangeEvent{Entity: EntityUnit, ID: "u1", Op: OpUpsert}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "unit:u1", string(w.msgs[0].Key))

	var got ChangeEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.False(t, got.At.IsZero())
}

func TestProducer_WrapsWriteErrors(t *testing.T) {
	boom := errors.New("broker unavailable")
	p := &Producer{writer: &fakeWriter{err: boom}}

	err := p.PublishMatches(context.Background(), MatchesUpdated{LeadID: "l1"})
	assert.ErrorIs(t, err, boom)
}
