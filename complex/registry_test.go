package complex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("ItemId", func() Value { return NewID("", "") }))
	require.NoError(t, r.Register("Body", func() Value { return NewBody(BodyTypeText, "") }))

	err := r.Register("ItemId", func() Value { return NewID("", "") })
	assert.Error(t, err, "duplicate registration")
	assert.Error(t, r.Register("Nil", nil))

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"ItemId", "Body"}, r.Names())

	v, ok := r.New("ItemId")
	require.True(t, ok)
	_, isID := IDOf(v)
	assert.True(t, isID)

	_, ok = r.Lookup("Unknown")
	assert.False(t, ok)
	v, ok = r.New("Unknown")
	assert.False(t, ok)
	assert.Nil(t, v)

	r.Remove("ItemId")
	assert.Equal(t, []string{"Body"}, r.Names())
	_, ok = r.Lookup("ItemId")
	assert.False(t, ok)
}

func TestDefaultRegistry(t *testing.T) {
	for _, name := range []string{"ItemId", "Mailbox", "Attendee", "Body", "Recurrence", "And", "Not", "IsEqualTo"} {
		_, ok := Lookup(name)
		assert.True(t, ok, name)
	}
	_, ok := Lookup("Excludes")
	assert.False(t, ok)

	// factories return independent values
	a, _ := DefaultRegistry().New("Categories")
	b, _ := DefaultRegistry().New("Categories")
	assert.NotSame(t, a, b)
}
