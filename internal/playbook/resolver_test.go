package playbook

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snakeguard/snakeguard-go/internal/conf"
	"github.com/snakeguard/snakeguard-go/internal/datastore"
)

func newTestStore(t *testing.T) *datastore.SQLiteStore {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	store := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

func TestNormalizeSpecies(t *testing.T) {
	cases := map[string]string{
		"Eastern Brown Snake":                  "eastern brown snake",
		"  Red-bellied Black Snake  ":          "red bellied black snake",
		"Taipan (Oxyuranus scutellatus)":       "taipan",
		"CARPET PYTHON":                        "carpet python",
		"Tiger   Snake":                        "tiger snake",
		"King Cobra!":                          "king cobra",
		"":                                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeSpecies(in), "input %q", in)
	}
}

func TestMatchFallbackChain(t *testing.T) {
	playbooks := []datastore.Playbook{
		{RiskLevel: datastore.RiskHigh, Species: strPtr("Tiger Snake"), FirstAid: "tiger"},
		{RiskLevel: datastore.RiskHigh, Species: nil, FirstAid: "generic"},
		{RiskLevel: datastore.RiskHigh, Species: strPtr("Eastern Brown Snake"), FirstAid: "brown"},
	}

	// Tier 1: exact normalized species match.
	got := Match(playbooks, "eastern  brown snake")
	require.NotNil(t, got)
	assert.Equal(t, "brown", got.FirstAid)

	// Tier 2: generic nil-species playbook.
	got = Match(playbooks, "Death Adder")
	require.NotNil(t, got)
	assert.Equal(t, "generic", got.FirstAid)

	// Tier 3: any playbook for the risk when no generic exists.
	specific := []datastore.Playbook{
		{RiskLevel: datastore.RiskHigh, Species: strPtr("Tiger Snake"), FirstAid: "tiger"},
	}
	got = Match(specific, "Death Adder")
	require.NotNil(t, got)
	assert.Equal(t, "tiger", got.FirstAid)

	assert.Nil(t, Match(nil, "anything"))
}

func TestResolveAgainstStore(t *testing.T) {
	store := newTestStore(t)
	resolver := NewResolver(store)

	require.NoError(t, store.SavePlaybook(&datastore.Playbook{
		RiskLevel: datastore.RiskHigh,
		Species:   strPtr("Eastern Brown Snake"),
		FirstAid:  "pressure bandage",
		Steps: []datastore.PlaybookStep{
			{Position: 1, Title: "Secure area"},
			{Position: 2, Title: "Call ranger"},
		},
	}))
	require.NoError(t, store.SavePlaybook(&datastore.Playbook{
		RiskLevel: datastore.RiskHigh,
		FirstAid:  "generic high",
	}))

	pb, err := resolver.Resolve(datastore.RiskHigh, "Eastern Brown Snake")
	require.NoError(t, err)
	require.NotNil(t, pb)
	assert.Equal(t, "pressure bandage", pb.FirstAid)
	require.Len(t, pb.Steps, 2)
	assert.Equal(t, "Secure area", pb.Steps[0].Title)

	pb, err = resolver.Resolve(datastore.RiskHigh, "Unknown Snake")
	require.NoError(t, err)
	require.NotNil(t, pb)
	assert.Equal(t, "generic high", pb.FirstAid)

	// No playbooks for the risk level at all.
	pb, err = resolver.Resolve(datastore.RiskLow, "Carpet Python")
	require.NoError(t, err)
	assert.Nil(t, pb)

	// Empty risk level short-circuits.
	pb, err = resolver.Resolve("", "Carpet Python")
	require.NoError(t, err)
	assert.Nil(t, pb)
}
