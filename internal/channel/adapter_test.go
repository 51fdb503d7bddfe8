package channel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var calls []string
	mark := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, e Event) error {
				calls = append(calls, name)
				return next(ctx, e)
			}
		}
	}
	h := Chain(func(context.Context, Event) error {
		calls = append(calls, "handler")
		return nil
	}, mark("first"), nil, mark("second"))

	assert.NoError(t, h(context.Background(), Event{}))
	assert.Equal(t, []string{"first", "second", "handler"}, calls)
}

func TestEventHelpers(t *testing.T) {
	t.Parallel()

	e := Event{ChatType: "Private", FileID: " abc ", MimeHint: "IMAGE/png"}
	assert.True(t, e.IsPrivate())
	assert.True(t, e.HasFile())

	e = Event{ChatType: ChatGroup, MimeHint: "application/pdf"}
	assert.False(t, e.IsPrivate())
	assert.False(t, e.HasFile())
}
