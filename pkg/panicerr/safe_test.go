package panicerr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeContext(t *testing.T) {
	boom := SafeContext(func(context.Context) error { panic("boom") })
	err := boom(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	want := errors.New("plain")
	plain := SafeContext(func(context.Context) error { return want })
	assert.ErrorIs(t, plain(context.Background()), want)

	assert.NoError(t, SafeContext(func(context.Context) error { return nil })(context.Background()))
}

func TestCall(t *testing.T) {
	v, err := Call(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = Call(func() (int, error) {
		var m map[string]int
		m["x"] = 1
		return 1, nil
	})
	require.Error(t, err)
	assert.Zero(t, v)
}
