package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyFor(t *testing.T) {
	a := KeyFor("solar_data", "4135001", "k1")
	assert.Equal(t, a, KeyFor("solar_data", "4135001", "k1"))

	// 区切りが異なれば別のID
	assert.NotEqual(t, a, KeyFor("solar_data", "4135001k", "1"))
	assert.NotEqual(t, a, KeyFor("other", "4135001", "k1"))
}
