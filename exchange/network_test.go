package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveNetwork(t *testing.T) {
	assert.Equal(t, Public, Resolve("public", "", ""))
	assert.Equal(t, Test, Resolve("test", "", ""))

	custom := Resolve("standalone", "http://localhost:8000", "Standalone Network ; February 2017")
	assert.Equal(t, "custom", custom.Name)
	assert.Equal(t, "http://localhost:8000", custom.HorizonURL)
	assert.Equal(t, "Standalone Network ; February 2017", custom.Passphrase)
}
