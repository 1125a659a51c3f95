package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistersInstrumentsWithoutError(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	require.NotNil(t, m.EventLag)
	require.NotNil(t, m.DropsTotal)
	defer m.Shutdown(context.Background())

	m.DropsTotal.Add(context.Background(), 1)
	m.EventLag.Record(context.Background(), 0.01)
}

func TestHandlerIsNotNil(t *testing.T) {
	require.NotNil(t, Handler())
}
