package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEIPAllocationIDs(t *testing.T) {
	_ = os.Setenv(envEIPAllocationIDs, "eipalloc-1, eipalloc-2,,eipalloc-3 ")
	defer os.Unsetenv(envEIPAllocationIDs)

	assert.Equal(t, []string{"eipalloc-1", "eipalloc-2", "eipalloc-3"}, getEIPAllocationIDs())
}

func TestGetEIPAllocationIDsUnset(t *testing.T) {
	_ = os.Unsetenv(envEIPAllocationIDs)

	assert.Empty(t, getEIPAllocationIDs())
}
