package envutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_INT", "nope")
	assert.Equal(t, 7, Int("ENVUTIL_TEST_INT", 7))
	t.Setenv("ENVUTIL_TEST_INT", " 12 ")
	assert.Equal(t, 12, Int("ENVUTIL_TEST_INT", 7))
}

func TestBool(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_BOOL", "off")
	assert.False(t, Bool("ENVUTIL_TEST_BOOL", true))
	t.Setenv("ENVUTIL_TEST_BOOL", "YES")
	assert.True(t, Bool("ENVUTIL_TEST_BOOL", false))
	t.Setenv("ENVUTIL_TEST_BOOL", "maybe")
	assert.True(t, Bool("ENVUTIL_TEST_BOOL", true))
}

func TestSecondsClampsNegative(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_SECS", "-4")
	assert.Equal(t, time.Duration(0), Seconds("ENVUTIL_TEST_SECS", 3))
	t.Setenv("ENVUTIL_TEST_SECS", "")
	assert.Equal(t, 3*time.Second, Seconds("ENVUTIL_TEST_SECS", 3))
}
