package producer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covenant/internal/platform/config"
)

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, SplitBrokers(""))
}

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(config.Kafka{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brokers not configured")
}

func TestAcksFor(t *testing.T) {
	cases := map[string]bool{"0": false, "1": false, "all": true, "": true}
	for level, idempotent := range cases {
		_, got := acksFor(level)
		assert.Equal(t, idempotent, got, "acks=%q", level)
	}
}

func TestClosedProducerRejectsWork(t *testing.T) {
	p, err := New(config.Kafka{Brokers: "127.0.0.1:1", Acks: "1"}, nil)
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err = p.Produce(context.Background(), &Message{Topic: "covenant.ledger", Value: []byte("{}")})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, p.Healthy(context.Background()), ErrClosed)
}

func TestToRecordCarriesHeaders(t *testing.T) {
	rec := toRecord(&Message{
		Topic:   "covenant.ledger",
		Key:     []byte("k"),
		Value:   []byte("v"),
		Headers: map[string]string{"event_type": "seigniorage.minted"},
	})
	assert.Equal(t, "covenant.ledger", rec.Topic)
	require.Len(t, rec.Headers, 1)
	assert.Equal(t, "event_type", rec.Headers[0].Key)
	assert.Equal(t, "seigniorage.minted", string(rec.Headers[0].Value))
}
