package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHooks_ShutdownRunsInReverseOnce(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var order []string
	var h Hooks
	for _, name := range []string{"first", "second", "third"} {
		h.OnShutdown(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	// --- Act ---
	err := h.Shutdown(context.Background())
	again := h.Shutdown(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	require.NoError(t, again)
	require.Equal(t, []string{"third", "second", "first"}, order)
}

func TestHooks_ErrorsAreJoined(t *testing.T) {
	t.Parallel()

	var h Hooks
	ran := false
	h.OnShutdown("last", func(context.Context) error { ran = true; return nil })
	h.OnShutdown("broken", func(context.Context) error { return errors.New("boom") })

	err := h.Shutdown(context.Background())

	require.ErrorContains(t, err, "shutdown hook broken: boom")
	require.True(t, ran, "a failing hook must not stop the others")
}
