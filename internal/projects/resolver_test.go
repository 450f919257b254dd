package projects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = Key{Region: "Dr", Project: "Dr 0007_Hijken_1989"}

func testRecords() []Record {
	return []Record{
		{Key: testKey, Year: "1989", Dir: "/archive/Dr/Dr 0007_Hijken_1989"},
	}
}

func cand(name, path string) Candidate {
	return Candidate{Key: testKey, Name: name, Path: path}
}

func TestResolveDatabaseTrivial(t *testing.T) {
	r := NewResolver(testRecords(), ResolverOptions{})
	res, err := r.Resolve(RoleDatabase, []Candidate{
		cand("data.mdb", "/archive/Dr/Dr 0007_Hijken_1989/sub/data.mdb"),
	}, nil)
	require.NoError(t, err)

	sel, ok := res.Selected[testKey]
	require.True(t, ok)
	assert.Equal(t, "/archive/Dr/Dr 0007_Hijken_1989/sub/data.mdb", sel.Path)
	assert.Equal(t, "trivial", sel.Tier)
	assert.False(t, sel.Guessed)
	assert.Empty(t, res.Ambiguous)
}

func TestResolveDatabaseProjectDir(t *testing.T) {
	r := NewResolver(testRecords(), ResolverOptions{})
	res, err := r.Resolve(RoleDatabase, []Candidate{
		cand("data.mdb", "/archive/Dr/Dr 0007_Hijken_1989/data.mdb"),
		cand("extra.mdb", "/archive/Dr/Dr 0007_Hijken_1989/sub/extra.mdb"),
	}, nil)
	require.NoError(t, err)

	sel := res.Selected[testKey]
	assert.Equal(t, "/archive/Dr/Dr 0007_Hijken_1989/data.mdb", sel.Path)
	assert.Equal(t, "projectdir", sel.Tier)
}

func TestResolveDatabaseDiscardTags(t *testing.T) {
	r := NewResolver(testRecords(), ResolverOptions{})
	res, err := r.Resolve(RoleDatabase, []Candidate{
		cand("data.mdb", "/archive/Dr/Dr 0007_Hijken_1989/sub/data.mdb"),
		cand("data_kopie.mdb", "/archive/Dr/Dr 0007_Hijken_1989/sub/data_kopie.mdb"),
	}, nil)
	require.NoError(t, err)

	sel := res.Selected[testKey]
	assert.Equal(t, "/archive/Dr/Dr 0007_Hijken_1989/sub/data.mdb", sel.Path)
	assert.Equal(t, "undiscarded", sel.Tier)
}

func TestResolveDatabaseAmbiguous(t *testing.T) {
	r := NewResolver(testRecords(), ResolverOptions{})
	res, err := r.Resolve(RoleDatabase, []Candidate{
		cand("a.mdb", "/archive/Dr/Dr 0007_Hijken_1989/sub1/a.mdb"),
		cand("b.mdb", "/archive/Dr/Dr 0007_Hijken_1989/sub2/b.mdb"),
	}, nil)
	require.NoError(t, err)

	_, ok := res.Selected[testKey]
	assert.False(t, ok, "ambiguous project must not be selected")
	assert.Len(t, res.Ambiguous, 2, "the whole candidate group is reported")
	assert.Equal(t, []Key{testKey}, res.AmbiguousKeys())
}

func TestResolvePolygonCanonical(t *testing.T) {
	r := NewResolver(testRecords(), ResolverOptions{})
	res, err := r.Resolve(RolePolygon, []Candidate{
		cand("Vlakken.shp", "/archive/Dr/Dr 0007_Hijken_1989/kaart/Vlakken.shp"),
		cand("vlak_oud2.shp", "/archive/Dr/Dr 0007_Hijken_1989/kaart/vlak_oud2.shp"),
	}, nil)
	require.NoError(t, err)

	sel := res.Selected[testKey]
	assert.Equal(t, "/archive/Dr/Dr 0007_Hijken_1989/kaart/Vlakken.shp", sel.Path)
	assert.Equal(t, "canonical", sel.Tier)
}

func TestResolvePolygonKeyword(t *testing.T) {
	r := NewResolver(testRecords(), ResolverOptions{})
	res, err := r.Resolve(RolePolygon, []Candidate{
		cand("vlakdef.shp", "/archive/Dr/Dr 0007_Hijken_1989/kaart/vlakdef.shp"),
		cand("topo.shp", "/archive/Dr/Dr 0007_Hijken_1989/kaart/topo.shp"),
	}, nil)
	require.NoError(t, err)

	sel := res.Selected[testKey]
	assert.Equal(t, "/archive/Dr/Dr 0007_Hijken_1989/kaart/vlakdef.shp", sel.Path)
	assert.Equal(t, "keyword", sel.Tier)
}

func TestResolveGeometryNoPlausibleCandidateOmitted(t *testing.T) {
	r := NewResolver(testRecords(), ResolverOptions{})
	res, err := r.Resolve(RolePolygon, []Candidate{
		cand("topo.shp", "/archive/Dr/Dr 0007_Hijken_1989/kaart/topo.shp"),
		cand("soils.shp", "/archive/Dr/Dr 0007_Hijken_1989/kaart/soils.shp"),
	}, nil)
	require.NoError(t, err)

	_, ok := res.Selected[testKey]
	assert.False(t, ok)
	assert.Empty(t, res.Ambiguous, "implausible groups are omitted, not ambiguous")
}

func TestResolvePriorityOverride(t *testing.T) {
	r := NewResolver(testRecords(), ResolverOptions{})
	res, err := r.Resolve(RoleDatabase, []Candidate{
		cand("a.mdb", "/archive/Dr/Dr 0007_Hijken_1989/sub1/a.mdb"),
		cand("b.mdb", "/archive/Dr/Dr 0007_Hijken_1989/sub2/b.mdb"),
	}, []string{"/archive/Dr/Dr 0007_Hijken_1989/sub2/b.mdb"})
	require.NoError(t, err)

	sel := res.Selected[testKey]
	assert.Equal(t, "/archive/Dr/Dr 0007_Hijken_1989/sub2/b.mdb", sel.Path)
	assert.Equal(t, "priority", sel.Tier)
	assert.False(t, sel.Guessed)
	assert.Empty(t, res.Ambiguous)
}

func TestResolveGuessTier(t *testing.T) {
	candidates := []Candidate{
		cand("vlakken_oud2005.shp", "/archive/Dr/Dr 0007_Hijken_1989/kaart/vlakken_oud2005.shp"),
		cand("vlak.shp", "/archive/Dr/Dr 0007_Hijken_1989/kaart2/vlak.shp"),
	}

	strict := NewResolver(testRecords(), ResolverOptions{})
	res, err := strict.Resolve(RolePolygon, candidates, nil)
	require.NoError(t, err)
	_, ok := res.Selected[testKey]
	assert.False(t, ok)
	assert.Len(t, res.Ambiguous, 2)

	loose := NewResolver(testRecords(), ResolverOptions{AllowGuess: true})
	res, err = loose.Resolve(RolePolygon, candidates, nil)
	require.NoError(t, err)
	sel, ok := res.Selected[testKey]
	require.True(t, ok)
	assert.Equal(t, "/archive/Dr/Dr 0007_Hijken_1989/kaart2/vlak.shp", sel.Path)
	assert.Equal(t, "guess", sel.Tier)
	assert.True(t, sel.Guessed, "heuristic selections are always flagged")
	assert.Empty(t, res.Ambiguous)
}

func TestResolveUnknownProjectKey(t *testing.T) {
	r := NewResolver(testRecords(), ResolverOptions{})
	_, err := r.Resolve(RoleDatabase, []Candidate{
		{Key: Key{Region: "Gr", Project: "nope"}, Name: "a.mdb", Path: "/archive/Gr/nope/a.mdb"},
	}, nil)
	assert.Error(t, err)
}

func TestResolveDeterministic(t *testing.T) {
	candidates := []Candidate{
		cand("a.mdb", "/archive/Dr/Dr 0007_Hijken_1989/sub1/a.mdb"),
		cand("b.mdb", "/archive/Dr/Dr 0007_Hijken_1989/sub2/b.mdb"),
	}
	r := NewResolver(testRecords(), ResolverOptions{})

	first, err := r.Resolve(RoleDatabase, candidates, nil)
	require.NoError(t, err)
	second, err := r.Resolve(RoleDatabase, candidates, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Selected, second.Selected)
	assert.Equal(t, first.Ambiguous, second.Ambiguous)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "vlakken def", normalizeName("Vlakken_def.shp"))
	assert.Equal(t, "vlak", normalizeName("vlak.SHP"))
}
