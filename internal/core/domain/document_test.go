package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocIDDeterministic(t *testing.T) {
	doc := NewDocument("pump maintenance interval", map[string]any{
		MetaSource:     "/docs/manual.pdf",
		MetaPageNumber: 3,
		MetaChunkIndex: 1,
	})

	id1 := DocID(doc)
	id2 := DocID(doc)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 16)
}

func TestDocIDVariesWithInputs(t *testing.T) {
	base := NewDocument("pump maintenance interval", map[string]any{
		MetaSource:     "/docs/manual.pdf",
		MetaChunkIndex: 0,
	})

	changed := NewDocument(base.Content+"!", base.CloneMetadata())
	assert.NotEqual(t, DocID(base), DocID(changed))

	other := NewDocument(base.Content, base.CloneMetadata())
	other.Metadata[MetaChunkIndex] = 1
	assert.NotEqual(t, DocID(base), DocID(other))

	moved := NewDocument(base.Content, base.CloneMetadata())
	moved.Metadata[MetaSource] = "/archive/manual.pdf"
	assert.NotEqual(t, DocID(base), DocID(moved))
}
