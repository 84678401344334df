// Package storetest provides store fixtures for tests in other packages.
package storetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Colorex-team/Colorex-System/internal/domain"
	"github.com/Colorex-team/Colorex-System/internal/store"
)

// New opens an in-memory store carrying the domain indexes. It is closed
// when the test ends.
func New(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()

	s, err := store.New("", nil, append(domain.StoreIndexes(), opts...)...)
	require.NoError(t, err)
	require.NotNil(t, s)

	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}
