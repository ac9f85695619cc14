package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/llm"
)

func TestConversationWindow(t *testing.T) {
	store := NewConversation(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, "s1", Message{Role: llm.RoleUser, Content: fmt.Sprintf("q%d", i)}))
	}

	msgs, err := store.Recent(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3, "oldest turns fall off the window")
	assert.Equal(t, "q2", msgs[0].Content)
	assert.Equal(t, "q4", msgs[2].Content)
}

func TestConversationSessionsIsolated(t *testing.T) {
	store := NewConversation(10)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "a", Message{Role: llm.RoleUser, Content: "from a"}))
	require.NoError(t, store.Append(ctx, "b", Message{Role: llm.RoleUser, Content: "from b"}))

	msgs, err := store.Recent(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "from a", msgs[0].Content)
}

func TestConversationConcurrentAppends(t *testing.T) {
	store := NewConversation(100)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Append(ctx, "shared", Message{Role: llm.RoleUser, Content: fmt.Sprintf("m%d", i)})
		}(i)
	}
	wg.Wait()

	msgs, err := store.Recent(ctx, "shared", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 50, "no appends lost under concurrency")
}

func TestRecentLimit(t *testing.T) {
	store := NewConversation(10)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, store.Append(ctx, "s", Message{Role: llm.RoleAssistant, Content: fmt.Sprintf("a%d", i)}))
	}

	msgs, err := store.Recent(ctx, "s", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a4", msgs[0].Content)
	assert.Equal(t, "a5", msgs[1].Content)
}

func TestToLLMMessages(t *testing.T) {
	msgs := []Message{
		{Role: llm.RoleUser, Content: "question"},
		{Role: llm.RoleAssistant, Content: "answer"},
	}
	converted := ToLLMMessages(msgs)
	require.Len(t, converted, 2)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "question"}, converted[0])
}

func TestSQLiteRoundTrip(t *testing.T) {
	path := t.TempDir() + "/history.db"

	store, err := OpenSQLite(path, 3)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, "s1", Message{Role: llm.RoleUser, Content: fmt.Sprintf("q%d", i)}))
	}

	msgs, err := store.Recent(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3, "history capped in storage")
	assert.Equal(t, "q2", msgs[0].Content)
	assert.Equal(t, "q4", msgs[2].Content)
}
