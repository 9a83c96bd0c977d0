package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Config, 2},
		{Ipc, 3},
		{Lock, 4},
		{Backend, 1},
		{Sim, 1},
		{Internal, 1},
	}
	for _, c := range cases {
		err := Wrap(c.kind, "op", errors.New("boom"))
		assert.Equalf(t, c.want, ExitCode(err), "ExitCode(%s)", c.kind)
	}
}

func TestExitCodeNil(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
}

func TestKindOfUnwraps(t *testing.T) {
	base := Wrap(Lock, "acquire", errors.New("held"))
	wrapped := &Error{Kind: Internal, Op: "retry", Err: base}
	require.Equal(t, Internal, KindOf(wrapped), "expected outer Kind to win")
	require.Equal(t, Lock, KindOf(base))
}
