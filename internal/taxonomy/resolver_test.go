package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func testResolver() *Resolver {
	return New(map[string][]Entry{
		"province_id": {
			{ID: 1, Value: "Hà Nội", Slug: "ha-noi"},
			{ID: 79, Value: "Hồ Chí Minh", Slug: "ho-chi-minh"},
		},
		"district_id": {
			{ID: 6, Value: "Đống Đa", Slug: "dong-da", ProvinceID: ptr(1)},
			{ID: 7, Value: "Hai Bà Trưng", Slug: "hai-ba-trung", ProvinceID: ptr(1)},
			{ID: 760, Value: "Quận 1", Slug: "quan-1", ProvinceID: ptr(79)},
		},
		"ward_id": {
			{ID: 100, Value: "Láng Thượng", DistrictID: ptr(6), ProvinceID: ptr(1)},
			{ID: 200, Value: "Bến Nghé", DistrictID: ptr(760), ProvinceID: ptr(79)},
		},
		"legal_document_id": {
			{ID: 1, Value: "Sổ đỏ/ Sổ hồng", Slug: "so-do-so-hong"},
			{ID: 2, Value: "Hợp đồng mua bán"},
		},
	})
}

func TestResolveNormalizationInvariance(t *testing.T) {
	r := testResolver()

	want, ok := r.Resolve("province_id", "Hà Nội")
	require.True(t, ok)
	require.Equal(t, int64(1), want)

	for _, label := range []string{"ha noi", "HA NOI", "  Hà Nội ", "ha-noi"} {
		got, ok := r.Resolve("province_id", label)
		require.True(t, ok, "label %q should resolve", label)
		require.Equal(t, want, got, "label %q", label)
	}
}

func TestResolveWordSetPartial(t *testing.T) {
	r := testResolver()

	// Superset of the stored words.
	id, ok := r.Resolve("district_id", "Quận Đống Đa")
	require.True(t, ok)
	require.Equal(t, int64(6), id)

	// Slug-style query via containment.
	id, ok = r.Resolve("legal_document_id", "so do")
	require.True(t, ok)
	require.Equal(t, int64(1), id)
}

func TestResolveScopedParentRejection(t *testing.T) {
	r := testResolver()

	// Correct scope resolves.
	id, ok := r.ResolveScoped("ward_id", "Láng Thượng", Scope{DistrictID: ptr(6)})
	require.True(t, ok)
	require.Equal(t, int64(100), id)

	// Wrong district: the label matches a ward elsewhere but must stay
	// unresolved rather than guess.
	_, ok = r.ResolveScoped("ward_id", "Láng Thượng", Scope{DistrictID: ptr(760)})
	require.False(t, ok)

	// Wrong province rejects districts too.
	_, ok = r.ResolveScoped("district_id", "Đống Đa", Scope{ProvinceID: ptr(79)})
	require.False(t, ok)
}

func TestResolveMisses(t *testing.T) {
	r := testResolver()

	_, ok := r.Resolve("province_id", "Atlantis")
	require.False(t, ok)
	_, ok = r.Resolve("no_such_dimension", "Hà Nội")
	require.False(t, ok)
	_, ok = r.Resolve("province_id", "")
	require.False(t, ok)
}

func TestDimensions(t *testing.T) {
	require.ElementsMatch(t,
		[]string{"province_id", "district_id", "ward_id", "legal_document_id"},
		testResolver().Dimensions())
}
