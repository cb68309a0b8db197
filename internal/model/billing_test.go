package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateJSON(t *testing.T) {
	type wrap struct {
		D  Date  `json:"d"`
		DP *Date `json:"dp"`
	}

	d, err := ParseDate("2025-01-15")
	require.NoError(t, err)

	b, err := json.Marshal(wrap{D: d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2025-01-15","dp":null}`, string(b))

	var got wrap
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2025-02-01","dp":"2025-03-04"}`), &got))
	assert.Equal(t, "2025-02-01", got.D.String())
	require.NotNil(t, got.DP)
	assert.Equal(t, "2025-03-04", got.DP.String())

	assert.Error(t, json.Unmarshal([]byte(`{"d":"01/15/2025"}`), &got))
}

func TestZeroDate(t *testing.T) {
	var d Date
	assert.Equal(t, "", d.String())
	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestNewDateTruncates(t *testing.T) {
	loc := time.FixedZone("X", -5*3600)
	d := NewDate(time.Date(2025, 6, 30, 23, 59, 0, 0, loc))
	assert.Equal(t, "2025-06-30", d.String())
	assert.Equal(t, time.UTC, d.Location())
}
