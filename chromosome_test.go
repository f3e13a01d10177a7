package replisim

import "testing"

func testChromosome() Chromosome {
	return newChromosome(ChromosomeData{
		ID: "chrI",
		Contigs: []Contig{
			{Start: 0, End: 9999},
			{Start: 20000, End: 29999},
		},
		Granules: make([]Vec3, 9),
	})
}

func TestChromosomeFindContig(t *testing.T) {
	c := testChromosome()

	contig, err := c.FindContig(5000)
	if err != nil {
		t.Fatalf("FindContig(5000) returned error: %v", err)
	}
	if contig.Start != 0 || contig.End != 9999 {
		t.Errorf("FindContig(5000) = %+v, want {0 9999}", contig)
	}

	if _, err := c.FindContig(15000); err == nil {
		t.Errorf("FindContig(15000) should have returned an error for a gap position")
	}
}

func TestChromosomeFindGranule(t *testing.T) {
	c := testChromosome()

	if _, err := c.FindGranule(0); err != nil {
		t.Errorf("FindGranule(0) returned error: %v", err)
	}
	if _, err := c.FindGranule(GranuleSize*9 - 1); err != nil {
		t.Errorf("FindGranule(%d) returned error: %v", GranuleSize*9-1, err)
	}
	if _, err := c.FindGranule(GranuleSize * 9); err == nil {
		t.Errorf("FindGranule(%d) should have returned an error past the granule chain", GranuleSize*9)
	}
}

func TestChromosomeInSameContig(t *testing.T) {
	c := testChromosome()

	if !c.InSameContig(100, 9000) {
		t.Errorf("expected 100 and 9000 to be in the same contig")
	}
	if c.InSameContig(100, 25000) {
		t.Errorf("expected 100 and 25000 to be in different contigs")
	}
	if c.InSameContig(100, 15000) {
		t.Errorf("expected 15000 (in the gap) to not share a contig with anything")
	}
}
