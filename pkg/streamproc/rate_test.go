package streamproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableProcessors_ListsAllKinds(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	infos := reg.AvailableProcessors()
	assert.Len(t, infos, 4)

	for _, info := range infos {
		assert.Positive(t, info.RateBytesPerSec)
	}
}

func TestEstimateDuration_ScalesWithSize(t *testing.T) {
	t.Parallel()

	small, err := EstimateDuration(1024, "LineProcessor")
	require.NoError(t, err)

	large, err := EstimateDuration(1024*1024, "LineProcessor")
	require.NoError(t, err)

	assert.Less(t, small, large)
}

func TestEstimateDuration_UnknownProcessor(t *testing.T) {
	t.Parallel()

	_, err := EstimateDuration(1024, "nonexistent")
	require.Error(t, err)
}
