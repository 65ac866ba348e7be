package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewOperator_NotSubscribed(t *testing.T) {
	o := NewOperator(1, 10)
	require.False(t, o.Subscribed)
	require.Equal(t, int64(1), o.ID)
	require.Equal(t, int64(10), o.ChatID)

	o.SetSubscribed(true)
	require.True(t, o.Subscribed)
}

func TestParseArtifactKind(t *testing.T) {
	k, err := ParseArtifactKind("video")
	require.NoError(t, err)
	require.Equal(t, ArtifactVideo, k)

	_, err = ParseArtifactKind("")
	require.ErrorIs(t, err, ErrValidation)

	_, err = ParseArtifactKind("image")
	require.ErrorIs(t, err, ErrValidation)
}
