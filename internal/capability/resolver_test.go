package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCatalog:
//
//	app -> lib -> base
//	cli -> base
//	redis <-> memcache conflict
//	cloud needs auth "acme", cloud -> base
func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(nil, []Capability{
		{ID: "base", Name: "Base"},
		{ID: "lib", Name: "Lib", Dependencies: []string{"base"}},
		{ID: "app", Name: "App", Dependencies: []string{"lib"}},
		{ID: "cli", Name: "CLI", Dependencies: []string{"base"}},
		{ID: "redis", Name: "Redis", Conflicts: []string{"memcache"}},
		{ID: "memcache", Name: "Memcache", Conflicts: []string{"redis"}},
		{ID: "cloud", Name: "Cloud", Dependencies: []string{"base"}, RequiresAuth: true, AuthService: "acme"},
		{ID: "cache", Name: "Cache", Dependencies: []string{"memcache"}},
	})
	require.NoError(t, err)
	return c
}

func TestResolveTransitiveClosure(t *testing.T) {
	c := testCatalog(t)
	res := c.Resolve([]string{"app"})

	assert.Equal(t, []string{"app", "lib", "base"}, res.Resolved)
	assert.Equal(t, []string{"lib", "base"}, res.Added)
	assert.Equal(t, "app", res.AddedBy["lib"])
	assert.Equal(t, "lib", res.AddedBy["base"])
	assert.True(t, res.Valid)
	assert.Empty(t, res.Conflicts)
}

func TestResolveDedupesAndCollectsUnknown(t *testing.T) {
	c := testCatalog(t)
	res := c.Resolve([]string{"cli", "cli", "nope", "base"})

	assert.Equal(t, []string{"cli", "base"}, res.Resolved)
	assert.Empty(t, res.Added)
	assert.Equal(t, []string{"nope"}, res.Unknown)
}

func TestResolveReportsConflictOnce(t *testing.T) {
	c := testCatalog(t)
	res := c.Resolve([]string{"redis", "memcache"})

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, ConflictPair{A: "redis", B: "memcache"}, res.Conflicts[0])
	assert.False(t, res.Valid)
}

func TestResolveFindsConflictThroughDependency(t *testing.T) {
	c := testCatalog(t)
	res := c.Resolve([]string{"redis", "cache"})

	assert.Equal(t, []string{"redis", "cache", "memcache"}, res.Resolved)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, ConflictPair{A: "redis", B: "memcache"}, res.Conflicts[0])
}

func TestOrderPlacesDependenciesFirst(t *testing.T) {
	c := testCatalog(t)

	order, err := c.Order([]string{"app", "cli"})
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "lib", "app", "cli"}, order)

	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	for _, id := range order {
		cp, _ := c.Get(id)
		for _, dep := range cp.Dependencies {
			assert.Less(t, pos[dep], pos[id], "%s before %s", dep, id)
		}
	}
}

func TestOrderKeepsIndependentInputOrder(t *testing.T) {
	c := testCatalog(t)
	order, err := c.Order([]string{"redis", "base", "memcache"})
	require.NoError(t, err)
	assert.Equal(t, []string{"redis", "base", "memcache"}, order)
}

func TestExecutionOrderDefaultCatalog(t *testing.T) {
	c := Default()
	order, err := c.ExecutionOrder([]string{"sonarlint", "typescript"})
	require.NoError(t, err)
	assert.Equal(t, []string{"java", "sonarlint", "typescript"}, order)
}

func TestValidateMessages(t *testing.T) {
	c := testCatalog(t)

	v := c.Validate([]string{"app", "cloud"})
	assert.True(t, v.Valid)
	assert.Empty(t, v.Errors)
	assert.Contains(t, v.Warnings, "Missing dependency: App requires Lib")
	assert.Contains(t, v.Warnings, "Missing dependency: Cloud requires Base")
	assert.Contains(t, v.Warnings, "Authentication required for: acme")

	v = c.Validate([]string{"redis", "memcache", "ghost"})
	assert.False(t, v.Valid)
	assert.Equal(t, []string{
		"Unknown capability: ghost",
		"Conflicting capability: Memcache",
	}, v.Errors)
}

func TestValidateEmptySelection(t *testing.T) {
	v := testCatalog(t).Validate(nil)
	assert.True(t, v.Valid)
	assert.Empty(t, v.Errors)
	assert.Empty(t, v.Warnings)
}

func TestCanAdd(t *testing.T) {
	c := testCatalog(t)

	tests := []struct {
		name    string
		id      string
		current []string
		ok      bool
		reason  string
	}{
		{"unknown", "ghost", nil, false, "Unknown capability"},
		{"already selected", "cli", []string{"cli"}, false, "Already selected"},
		{"direct conflict", "memcache", []string{"redis"}, false, "Conflicts with Redis"},
		{"conflict via dependency", "cache", []string{"redis"}, false, "Conflicts with Redis"},
		{"conflict with existing dependency", "redis", []string{"cache"}, false, "Conflicts with Memcache"},
		{"fine", "app", []string{"cli"}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := c.CanAdd(tt.id, tt.current)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestRequiredAuthServicesDefaultCatalog(t *testing.T) {
	c := Default()
	got := c.RequiredAuthServices([]string{"sveltekit", "doppler", "circleci", "doppler"})
	assert.Equal(t, []string{"doppler", "circleci"}, got)
}

func TestSummary(t *testing.T) {
	c := testCatalog(t)
	s := c.Summary([]string{"app", "cloud"})

	assert.Equal(t, 2, s.TotalSelected)
	assert.Equal(t, 4, s.TotalResolved)
	assert.Equal(t, 2, s.Added)
	assert.Equal(t, 0, s.Conflicts)
	assert.Equal(t, []string{"acme"}, s.AuthServices)
	assert.Equal(t, []string{"base", "lib", "app", "cloud"}, s.ExecutionOrder)
	assert.True(t, s.Validation.Valid)
}
