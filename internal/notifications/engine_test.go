package notifications

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/almoxarifado/almoxarifado/internal/status"
)

func TestEvaluateEmitsOnlyOnClassChange(t *testing.T) {
	engine := NewEngine()

	_, emit := engine.Evaluate(Transition{ItemName: "Cabo", Previous: status.LowStock, Current: status.LowStock, Quantity: 2})
	require.False(t, emit)

	n, emit := engine.Evaluate(Transition{ItemID: 7, ItemName: "Cabo", Owner: "ana", Previous: status.Unavailable, Current: status.InStock, Quantity: 10})
	require.True(t, emit)
	require.Equal(t, "Cabo está em estoque (10 unidades)", n.Message)
	require.Equal(t, status.InStock, n.Status)
	require.Equal(t, "ana", n.Owner)
	require.Equal(t, int64(7), n.ItemID)
	require.True(t, n.Active)
	require.False(t, n.Read)
}

func TestEvaluateRepeatedCrossingsEachFire(t *testing.T) {
	engine := NewEngine()
	steps := []struct {
		qty  int64
		want string
	}{
		{10, "Cabo está em estoque (10 unidades)"},
		{3, "Cabo está com estoque baixo (3 unidades)"},
		{8, "Cabo está em estoque (8 unidades)"},
		{1, "Cabo está com estoque baixo (1 unidades)"},
		{0, "Cabo está indisponível (0 unidades)"},
	}
	prev := status.Unavailable
	for _, step := range steps {
		cur := status.Derive(step.qty, 5)
		n, emit := engine.Evaluate(Transition{ItemName: "Cabo", Previous: prev, Current: cur, Quantity: step.qty})
		require.True(t, emit)
		require.Equal(t, step.want, n.Message)
		prev = cur
	}
}
