package delta

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseItem_KeyOrderDoesNotMatter(t *testing.T) {
	t.Parallel()

	a, err := ParseItem([]byte(`{"id":7,"name":"x","size":1024}`))
	require.NoError(t, err)
	b, err := ParseItem([]byte(`{ "size": 1024, "name": "x", "id": 7 }`))
	require.NoError(t, err)

	assert.Equal(t, "7", a.ID)
	assert.Equal(t, a.Payload, b.Payload)
	assert.False(t, Changed(a, b))
}

func TestParseItem_UpdatedAtForms(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want string
	}{
		{`{"id":"a","updated_at":"2024-01-01T00:00:00Z"}`, "2024-01-01T00:00:00Z"},
		{`{"id":"a","updated_at":1700000000}`, "1700000000"},
		{`{"id":"a","updated_at":null}`, ""},
		{`{"id":"a"}`, ""},
	}
	for _, tc := range cases {
		it, err := ParseItem([]byte(tc.raw))
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, it.UpdatedAt, tc.raw)
	}
}

func TestParseItem_Rejects(t *testing.T) {
	t.Parallel()

	_, err := ParseItem([]byte(`{"name":"no id"}`))
	assert.ErrorIs(t, err, ErrNoID)

	_, err = ParseItem([]byte(`{"id":true}`))
	assert.ErrorIs(t, err, ErrNoID)

	_, err = ParseItem([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = ParseItem([]byte(`null`))
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestParseItems_PreservesOrderAndNumbers(t *testing.T) {
	t.Parallel()

	items, err := ParseItems([]byte(`[{"id":2,"progress":0.1234567890123},{"id":1}]`))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, []string{"2", "1"}, ids(items))
	assert.JSONEq(t, `{"id":2,"progress":0.1234567890123}`, string(items[0].Payload))

	_, err = ParseItems([]byte(`[{"id":1},{"x":1}]`))
	assert.ErrorIs(t, err, ErrNoID)
}

func TestItem_MarshalJSONEmitsPayload(t *testing.T) {
	t.Parallel()

	it, err := ParseItem([]byte(`{"id":"a","name":"<b>"}`))
	require.NoError(t, err)

	out, err := json.Marshal([]Item{it})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a","name":"<b>"}]`, string(out))

	out, err = json.Marshal(Item{ID: "bare"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"bare"}`, string(out))
}
