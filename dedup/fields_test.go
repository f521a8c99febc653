package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"summary-processor/types"
)

func TestProjectHeaders_CanonicalOrderAndFirstSeenCasing(t *testing.T) {
	sheets := []types.SourceSheet{
		{Header: []string{"title", "ARTIST", "Foo", "Length"}},
		{Header: []string{"Title", "Genre", "artist"}},
	}

	headers := ProjectHeaders(sheets, false)

	assert.Equal(t, []string{"title", "ARTIST", "Genre", "Length"}, headers)
}

func TestProjectHeaders_YearBucketsAppendedFirstSeen(t *testing.T) {
	sheets := []types.SourceSheet{
		{Header: []string{"Title", "2021", "2019"}},
		{Header: []string{"Title", "2019", "2020"}},
	}

	assert.Equal(t, []string{"Title", "2021", "2019", "2020"}, ProjectHeaders(sheets, true))

	// summary mode drops year columns like any unrecognized header
	assert.Equal(t, []string{"Title"}, ProjectHeaders(sheets, false))
}

func TestAlignRow(t *testing.T) {
	header := []string{"Artist", "Title"}
	canonical := []string{"Title", "Artist", "Genre"}

	aligned := AlignRow([]string{"Daft Punk", "Around the World"}, header, canonical)
	assert.Equal(t, []string{"Around the World", "Daft Punk", ""}, aligned)
}

func TestAlignRow_RaggedRow(t *testing.T) {
	header := []string{"Artist", "Title"}
	canonical := []string{"Title", "Artist"}

	aligned := AlignRow([]string{"Moby"}, header, canonical)
	assert.Equal(t, []string{"", "Moby"}, aligned)
}

func TestKeyFields(t *testing.T) {
	primary, secondary, err := KeyFields([]string{"Title", "Artist", "Genre", "Length"})
	assert.NoError(t, err)
	assert.Equal(t, []FieldIndex{{Field: "Title", Index: 0}, {Field: "Artist", Index: 1}}, primary)
	assert.Equal(t, []FieldIndex{{Field: "Genre", Index: 2}}, secondary)
}

func TestKeyFields_NoPrimaryField(t *testing.T) {
	_, _, err := KeyFields([]string{"Genre", "Length"})
	assert.ErrorIs(t, err, ErrNoPrimaryField)
}
