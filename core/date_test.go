package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("25/12/2026")
	require.NoError(t, err)
	assert.Equal(t, 2026, d.Year())
	assert.Equal(t, time.December, d.Month())
	assert.Equal(t, 25, d.Day())

	_, err = ParseDate("2026-12-25")
	assert.Error(t, err)

	_, err = ParseDate("32/01/2026")
	assert.Error(t, err)
}

func TestDate_JSON(t *testing.T) {
	type payload struct {
		Deadline Date `json:"deadline"`
	}

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"deadline": "01/09/2026"}`), &p))
	assert.Equal(t, NewDate(2026, time.September, 1), p.Deadline)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"deadline": "01/09/2026"}`, string(data))

	// null stays null
	p = payload{}
	require.NoError(t, json.Unmarshal([]byte(`{"deadline": null}`), &p))
	assert.True(t, p.Deadline.IsZero())
	data, err = json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"deadline": null}`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`{"deadline": "2026-09-01"}`), &p))
}

func TestDate_Display(t *testing.T) {
	assert.Equal(t, "01/09/2026", NewDate(2026, time.September, 1).Display())
}
