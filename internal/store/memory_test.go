package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/mediaplan/internal/models"
)

func TestMemoryStore_LoadAndQuery(t *testing.T) {
	st := NewMemoryStore()
	st.Load(models.Bundle{
		Clients: []models.Client{{ID: "c1", Name: "Acme"}},
		Plans: []models.MediaPlan{
			{ID: "p2", ClientID: "c1"},
			{ID: "p1", ClientID: "c1"},
		},
		Insertions: []models.Insertion{
			{ID: "i3", PlanID: "p1"},
			{ID: "i1", PlanID: "p1"},
			{ID: "i2", PlanID: "p2"},
		},
		Channels: []models.Channel{{ID: "fb", Name: "Facebook"}},
	})

	p, err := st.Plan("p1")
	require.NoError(t, err)
	assert.Equal(t, "c1", p.ClientID)

	_, err = st.Plan("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	ins := st.InsertionsForPlan("p1")
	require.Len(t, ins, 2)
	assert.Equal(t, "i1", ins[0].ID)
	assert.Equal(t, "i3", ins[1].ID)

	plans := st.Plans()
	require.Len(t, plans, 2)
	assert.Equal(t, "p1", plans[0].ID)

	require.NotNil(t, st.Client("c1"))
	assert.Nil(t, st.Client("nobody"))

	refs := st.References()
	assert.Equal(t, "Facebook", refs.Channels["fb"].Name)
	refs.Channels["fb"] = models.Channel{ID: "fb", Name: "mutated"}
	assert.Equal(t, "Facebook", st.References().Channels["fb"].Name)

	assert.Equal(t, 3, st.Counts()["insertions"])
}

func TestMemoryStore_MarkApplied(t *testing.T) {
	st := NewMemoryStore()
	assert.True(t, st.MarkApplied("plan|p1", "a"))
	assert.False(t, st.MarkApplied("plan|p1", "a"))
	assert.True(t, st.MarkApplied("plan|p1", "b"))
	// volver a una versión anterior también se aplica
	assert.True(t, st.MarkApplied("plan|p1", "a"))
	assert.True(t, st.MarkApplied("plan|p2", "a"))
}
