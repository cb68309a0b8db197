package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmazonOrderUpdatedAtJSON(t *testing.T) {
	data, err := json.Marshal(AmazonOrder{OrderID: "111-2222222-3333333"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "updated_at")

	data, err = json.Marshal(AmazonOrder{
		OrderID:   "111-2222222-3333333",
		UpdatedAt: time.Date(2025, 2, 1, 8, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"updated_at":"2025-02-01T08:30:00Z"`)
}
