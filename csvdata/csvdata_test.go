package csvdata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrigins(t *testing.T) {
	records, err := LoadOrigins(strings.NewReader("oriA,chrI,1000\noriB,chrI,5000\n"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "oriA", records[0].ID)
	assert.Equal(t, uint64(5000), records[1].Pos)
}

func TestLoadOriginsRejectsBadPosition(t *testing.T) {
	_, err := LoadOrigins(strings.NewReader("oriA,chrI,notanumber\n"))
	require.Error(t, err)
}

func TestLoadChromosomes(t *testing.T) {
	data, err := LoadChromosomes(strings.NewReader("chrI,0,9999,20000,29999\nchrII,0,5000\n"))
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Len(t, data[0].Contigs, 2)
	assert.Equal(t, uint64(20000), data[0].Contigs[1].Start)
	assert.Len(t, data[1].Contigs, 1)
}

func TestLoadChromosomesRejectsOddBoundaryColumns(t *testing.T) {
	_, err := LoadChromosomes(strings.NewReader("chrI,0,9999,20000\n"))
	require.Error(t, err)
}

func TestLoadGranules(t *testing.T) {
	data, err := LoadChromosomes(strings.NewReader("chrI,0,9999\n"))
	require.NoError(t, err)

	err = LoadGranules(strings.NewReader("chrI,0.0,0.0,0.0\nchrI,0.1,0.0,0.0\n"), data)
	require.NoError(t, err)
	require.Len(t, data[0].Granules, 2)
	assert.Equal(t, 0.1, data[0].Granules[1][0])
}

func TestLoadGranulesRejectsUnknownChromosome(t *testing.T) {
	data, err := LoadChromosomes(strings.NewReader("chrI,0,9999\n"))
	require.NoError(t, err)

	err = LoadGranules(strings.NewReader("chrX,0.0,0.0,0.0\n"), data)
	require.Error(t, err)
}
