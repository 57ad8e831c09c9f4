package projection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hearthchat/domain"
	"hearthchat/domain/event"
)

func stored(id int64) event.MessageStored {
	return event.MessageStored{
		Message: domain.Message{
			ID:        domain.MessageID(id),
			Room:      1,
			CreatedAt: time.Now().UTC(),
		},
	}
}

func TestTimeline_Consume_Preserves_Observation_Order(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	ctx := context.Background()

	req.NoError(timeline.Consume(ctx, stored(1)))
	req.NoError(timeline.Consume(ctx, stored(2)))
	req.NoError(timeline.Consume(ctx, stored(3)))

	messages := timeline.Messages()
	req.Len(messages, 3)
	req.Equal(domain.MessageID(1), messages[0].ID)
	req.Equal(domain.MessageID(3), messages[2].ID)
}

func TestTimeline_Consume_Drops_Duplicates(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	ctx := context.Background()

	req.NoError(timeline.Consume(ctx, stored(1)))
	req.NoError(timeline.Consume(ctx, stored(1)))

	req.Len(timeline.Messages(), 1)
}

func TestTimeline_Consume_Ignores_Other_Events(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()

	req.NoError(timeline.Consume(context.Background(), event.SendRejected{Room: 1}))
	req.Empty(timeline.Messages())
}
