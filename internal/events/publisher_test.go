package events

import (
	"context"
	"testing"
	"time"

	"github.com/permgate/permgate/internal/models"
	"github.com/permgate/permgate/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)
	return s
}

func TestPublish_FlushesOnClose(t *testing.T) {
	s := newEventTestStore(t)
	p := NewPublisher(s, true, 10)

	p.Publish(context.Background(), Event{
		Type:     models.EventAccessTokenGranted,
		Severity: models.SeverityInfo,
		ActorID:  "user-1",
		ClientID: "client-a",
		TargetID: "token-1",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))

	saved, err := s.GetEventsByActor("user-1", 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, models.EventAccessTokenGranted, saved[0].Type)
	assert.Equal(t, "client-a", saved[0].ClientID)
}

func TestPublish_DisabledIsANoOp(t *testing.T) {
	s := newEventTestStore(t)
	p := NewPublisher(s, false, 0)
	assert.Nil(t, p.batchTicker, "disabled publisher must not start a flush ticker")

	p.Publish(context.Background(), Event{
		Type:    models.EventAccessTokenGranted,
		ActorID: "user-1",
	})
	require.NoError(t, p.Close(context.Background()))

	saved, err := s.GetEventsByActor("user-1", 10)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestPublish_MasksSensitiveDetails(t *testing.T) {
	s := newEventTestStore(t)
	p := NewPublisher(s, true, 10)

	p.Publish(context.Background(), Event{
		Type:     models.EventAccessTokenGranted,
		Severity: models.SeverityInfo,
		ActorID:  "user-2",
		Details: models.EventDetails{
			"client_secret": "super-secret-value",
			"scopes":        "read",
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))

	saved, err := s.GetEventsByActor("user-2", 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "***REDACTED***", saved[0].Details["client_secret"])
	assert.Equal(t, "read", saved[0].Details["scopes"])
}
