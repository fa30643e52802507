package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetIntEnv(t *testing.T) {
	t.Setenv("LINGCRM_TEST_INT", " 42 ")
	assert.Equal(t, int64(42), GetIntEnv("LINGCRM_TEST_INT"))

	t.Setenv("LINGCRM_TEST_INT", "abc")
	assert.Equal(t, int64(0), GetIntEnv("LINGCRM_TEST_INT"))
}

func TestGetBoolEnv(t *testing.T) {
	cases := map[string]bool{
		"true":  true,
		"1":     true,
		"yes":   true,
		"on":    true,
		"false": false,
		"":      false,
		"nope":  false,
	}
	for value, want := range cases {
		t.Setenv("LINGCRM_TEST_BOOL", value)
		assert.Equal(t, want, GetBoolEnv("LINGCRM_TEST_BOOL"), value)
	}
}

func TestRandText(t *testing.T) {
	a := RandText(16)
	b := RandText(16)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}

func TestInitDatabase_SQLiteMemory(t *testing.T) {
	db, err := InitDatabase(nil, "sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Exec("SELECT 1").Error)
}

func TestInitDatabase_UnsupportedDriver(t *testing.T) {
	_, err := InitDatabase(nil, "oracle", "dsn")
	assert.Error(t, err)
}
