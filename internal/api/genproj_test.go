package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/household/internal/capability"
)

const gp = "/projects/genproj/api"

func conflictCatalog(t *testing.T) *capability.Catalog {
	t.Helper()
	c, err := capability.NewCatalog(nil, []capability.Capability{
		{ID: "base", Name: "Base"},
		{ID: "app", Name: "App", Dependencies: []string{"base"}},
		{ID: "redis", Name: "Redis", Conflicts: []string{"memcache"}},
		{ID: "memcache", Name: "Memcache", Conflicts: []string{"redis"}},
		{ID: "cloud", Name: "Cloud", RequiresAuth: true, AuthService: "acme", ConfigSchema: map[string]capability.FieldRule{
			"region": {Type: "string", Enum: []string{"eu", "us"}, Required: true},
		}},
	})
	require.NoError(t, err)
	return c
}

func TestListCapabilities(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, gp+"/capabilities", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Capabilities []capability.Capability `json:"capabilities"`
		Categories   []capability.Category   `json:"categories"`
		Metadata     struct {
			Total      int      `json:"total"`
			Categories []string `json:"categories"`
			Timestamp  string   `json:"timestamp"`
		} `json:"metadata"`
	}](t, rec)
	assert.Len(t, body.Capabilities, 15)
	assert.Equal(t, 15, body.Metadata.Total)
	assert.NotEmpty(t, body.Metadata.Categories)
	assert.Equal(t, "2025-03-10T12:00:00.000Z", body.Metadata.Timestamp)
}

func TestResolveCapabilitiesValidation(t *testing.T) {
	e := newTestEnv(t, func(c *Config) { c.Catalog = conflictCatalog(t) })

	for _, tc := range []struct {
		body string
		msg  string
	}{
		{`{"selectedCapabilities":"app"}`, "Selected capabilities must be an array"},
		{`{}`, "Selected capabilities must be an array"},
		{`{"selectedCapabilities":[]}`, "At least one capability must be selected"},
		{`{"selectedCapabilities":["app","app"]}`, "Duplicate capabilities are not allowed"},
	} {
		rec := e.do(t, http.MethodPost, gp+"/capabilities", tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.body)
		assert.Equal(t, tc.msg, errorOf(t, rec), tc.body)
	}

	rec := e.do(t, http.MethodPost, gp+"/capabilities", `{"selectedCapabilities":["app","nope","ghost"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid capability IDs","invalidCapabilities":["nope","ghost"]}`, rec.Body.String())

	rec = e.do(t, http.MethodPost, gp+"/capabilities", `{"selectedCapabilities":["redis","memcache"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Capability validation failed","conflicts":[{"a":"redis","b":"memcache"}]}`, rec.Body.String())
}

func TestResolveCapabilities(t *testing.T) {
	e := newTestEnv(t, func(c *Config) { c.Catalog = conflictCatalog(t) })

	rec := e.do(t, http.MethodPost, gp+"/capabilities", `{"selectedCapabilities":["app","cloud"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{
		"valid": true,
		"selectedCapabilities": ["app","cloud"],
		"resolved": ["app","cloud","base"],
		"added": ["base"],
		"requiredAuth": ["acme"],
		"executionOrder": ["base","app","cloud"],
		"validation": {
			"errors": [],
			"warnings": ["Missing dependency: App requires Base", "Authentication required for: acme"]
		}
	}`, rec.Body.String())
}

func TestResolveCapabilitiesConfiguration(t *testing.T) {
	e := newTestEnv(t, func(c *Config) { c.Catalog = conflictCatalog(t) })

	rec := e.do(t, http.MethodPost, gp+"/capabilities", `{"selectedCapabilities":["cloud"],"configuration":{"cloud":{"region":"mars"}}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Configuration validation failed","details":["cloud.region must be one of: eu, us"]}`, rec.Body.String())

	rec = e.do(t, http.MethodPost, gp+"/capabilities", `{"selectedCapabilities":["cloud"],"configuration":{"cloud":{}}}`)
	assert.JSONEq(t, `{"error":"Configuration validation failed","details":["cloud.region is required"]}`, rec.Body.String())

	rec = e.do(t, http.MethodPost, gp+"/capabilities", `{"selectedCapabilities":["cloud"],"configuration":["cloud"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Configuration must be an object keyed by capability", errorOf(t, rec))

	rec = e.do(t, http.MethodPost, gp+"/capabilities", `{"selectedCapabilities":["cloud"],"configuration":{"cloud":{"region":"eu"},"app":{"x":1}}}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestConflictsEndpoint(t *testing.T) {
	e := newTestEnv(t, func(c *Config) { c.Catalog = conflictCatalog(t) })

	rec := e.do(t, http.MethodPost, gp+"/conflicts", `{"capabilityId":"memcache","currentSelection":["redis"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"canAdd":false,"reason":"Conflicts with Redis"}`, rec.Body.String())

	rec = e.do(t, http.MethodPost, gp+"/conflicts", `{"capabilityId":"app","currentSelection":["redis"]}`)
	assert.JSONEq(t, `{"canAdd":true,"reason":""}`, rec.Body.String())

	rec = e.do(t, http.MethodPost, gp+"/conflicts", `{"currentSelection":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
