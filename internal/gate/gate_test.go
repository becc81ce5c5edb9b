package gate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"assetguard/internal/extract"
	"assetguard/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), store.Options{})
	require.NoError(t, err)
	return s
}

func TestFilterActiveFailsOpenForUnknownResources(t *testing.T) {
	s := newStore(t)
	rapid.Check(t, func(rt *rapid.T) {
		handle := rapid.String().Draw(rt, "handle")
		kind := rapid.SampledFrom([]extract.Kind{extract.KindScript, extract.KindStyle, extract.Kind("other")}).Draw(rt, "kind")
		if !FilterActive(s, kind, handle) {
			rt.Fatalf("unknown resource %s:%q was suppressed", kind, handle)
		}
	})
}

func TestFilterActiveFollowsRecord(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	rec, _, err := s.Upsert(ctx, extract.KindScript, "slick-carousel", "Gallery Pro", "")
	require.NoError(t, err)

	assert.True(t, FilterActive(s, extract.KindScript, "slick-carousel"))
	_, err = s.Toggle(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, FilterActive(s, extract.KindScript, "slick-carousel"))
	// same handle, other kind, has no record
	assert.True(t, FilterActive(s, extract.KindStyle, "slick-carousel"))
}

func TestRenderSuppressesInactiveWhenEnforced(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	rec, _, err := s.Upsert(ctx, extract.KindStyle, "font-awesome", "Icons", "")
	require.NoError(t, err)
	_, err = s.Toggle(ctx, rec.ID)
	require.NoError(t, err)

	queue := []extract.Descriptor{
		{Handle: "jquery", Kind: extract.KindScript},
		{Handle: "font-awesome", Kind: extract.KindStyle},
		{Handle: "theme-main", Kind: extract.KindStyle},
	}
	d := New(s, true).Render(queue)
	assert.True(t, d.Enforced)
	assert.Equal(t, []extract.Descriptor{queue[0], queue[2]}, d.Emitted)
	assert.Equal(t, []extract.Descriptor{queue[1]}, d.Suppressed)
	assert.Empty(t, d.WouldSuppress)
}

func TestRenderReportsOnlyWhenNotEnforced(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	rec, _, err := s.Upsert(ctx, extract.KindStyle, "font-awesome", "Icons", "")
	require.NoError(t, err)
	_, err = s.Toggle(ctx, rec.ID)
	require.NoError(t, err)

	queue := []extract.Descriptor{{Handle: "font-awesome", Kind: extract.KindStyle}}
	g := New(s, false)
	d := g.Render(queue)
	assert.False(t, d.Enforced)
	assert.Equal(t, queue, d.Emitted)
	assert.Empty(t, d.Suppressed)
	assert.Equal(t, queue, d.WouldSuppress)
	assert.False(t, g.FilterActive(extract.KindStyle, "font-awesome"))
}

func TestRenderEmptyQueue(t *testing.T) {
	d := New(newStore(t), true).Render(nil)
	assert.Empty(t, d.Emitted)
	assert.Empty(t, d.Suppressed)
}
