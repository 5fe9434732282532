package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndListOrdered(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	later := Message{CropID: "c1", SenderID: "a", ReceiverID: "b", Body: "second", SentAt: time.Now().Add(time.Minute)}
	earlier := Message{CropID: "c1", SenderID: "b", ReceiverID: "a", Body: "first", SentAt: time.Now()}

	require.NoError(t, s.AppendMessage(ctx, &later))
	require.NoError(t, s.AppendMessage(ctx, &earlier))

	msgs, err := s.MessagesByCrop(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Body)
	assert.Equal(t, "second", msgs[1].Body)

	other, err := s.MessagesByCrop(ctx, "c2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAppendValidation(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	assert.ErrorIs(t, s.AppendMessage(ctx, &Message{CropID: "c1", SenderID: "a", ReceiverID: "b", Body: "   "}), ErrInvalidInput)
	assert.ErrorIs(t, s.AppendMessage(ctx, &Message{SenderID: "a", ReceiverID: "b", Body: "hi"}), ErrInvalidInput)
}

func TestDeleteByCrop(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, &Message{CropID: "c1", SenderID: "a", ReceiverID: "b", Body: "hi"}))
	require.NoError(t, s.DeleteMessagesByCrop(ctx, "c1"))

	msgs, err := s.MessagesByCrop(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
