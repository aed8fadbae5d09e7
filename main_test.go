package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenPort(t *testing.T) {
	port, err := listenPort(":3000")
	require.NoError(t, err)
	assert.Equal(t, 3000, port)

	port, err = listenPort("127.0.0.1:8080")
	require.NoError(t, err)
	assert.Equal(t, 8080, port)

	for _, addr := range []string{"3000", ":http", ":0", ":70000", "host:"} {
		_, err := listenPort(addr)
		assert.Error(t, err, addr)
	}
}
