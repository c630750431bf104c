package websocket

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/skillswap-api/internal/events"
)

func systemEvent(recipient uuid.UUID, message string) events.DomainEvent {
	return events.New(events.KindSystemMessage, uuid.Nil, recipient, "System", message, nil)
}

func TestMailboxPreservesOrder(t *testing.T) {
	mb := NewMailbox()
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		mb.Enqueue(userID, systemEvent(userID, fmt.Sprintf("событие %d", i)))
	}

	drained := mb.Drain(userID)
	require.Len(t, drained, 5)
	for i, ev := range drained {
		assert.Equal(t, fmt.Sprintf("событие %d", i), ev.Message)
	}
}

func TestMailboxEvictsOldest(t *testing.T) {
	mb := NewMailbox()
	userID := uuid.New()

	for i := 0; i < MailboxCapacity+10; i++ {
		mb.Enqueue(userID, systemEvent(userID, fmt.Sprintf("событие %d", i)))
	}

	assert.Equal(t, MailboxCapacity, mb.Len(userID))

	drained := mb.Drain(userID)
	require.Len(t, drained, MailboxCapacity)

	// Остались только самые свежие события, порядок сохранён
	assert.Equal(t, "событие 10", drained[0].Message)
	assert.Equal(t, fmt.Sprintf("событие %d", MailboxCapacity+9), drained[MailboxCapacity-1].Message)
}

func TestMailboxDrainEmpties(t *testing.T) {
	mb := NewMailbox()
	userID := uuid.New()

	mb.Enqueue(userID, systemEvent(userID, "одно"))
	require.Len(t, mb.Drain(userID), 1)

	assert.Equal(t, 0, mb.Len(userID))
	assert.Empty(t, mb.Drain(userID))
}

func TestMailboxUnknownUser(t *testing.T) {
	mb := NewMailbox()

	assert.Nil(t, mb.Drain(uuid.New()))
	assert.Equal(t, 0, mb.Len(uuid.New()))
}

func TestMailboxIsolatesUsers(t *testing.T) {
	mb := NewMailbox()
	first := uuid.New()
	second := uuid.New()

	mb.Enqueue(first, systemEvent(first, "для первого"))
	mb.Enqueue(second, systemEvent(second, "для второго"))

	drained := mb.Drain(first)
	require.Len(t, drained, 1)
	assert.Equal(t, "для первого", drained[0].Message)
	assert.Equal(t, 1, mb.Len(second))
}
