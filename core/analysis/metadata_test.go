package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathMetadataReader(t *testing.T) {
	meta, err := PathMetadataReader{}.ReadMetadata("/music/Daft Punk/Da Funk - Around the World.mp3")
	require.NoError(t, err)
	assert.Equal(t, "Da Funk", meta.Artist)
	assert.Equal(t, "Around the World", meta.Title)
	assert.Equal(t, "Daft Punk", meta.Album)
}

func TestPathMetadataReaderNoArtistSeparator(t *testing.T) {
	meta, err := PathMetadataReader{}.ReadMetadata("/music/mixes/untitled.flac")
	require.NoError(t, err)
	assert.Equal(t, "untitled", meta.Title)
	assert.Empty(t, meta.Artist)
	assert.Equal(t, "mixes", meta.Album)
}
