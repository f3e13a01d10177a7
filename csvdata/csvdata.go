// Package csvdata loads the fixed, headerless CSV formats used to
// describe origins, chromosomes, and chromosome granules into the
// replisim core's construction types.
package csvdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/replisim/replisim"
)

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = ','
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

func invalidRow(row int, err error) error {
	return &replisim.InvalidInput{Err: fmt.Errorf("row %d: %w", row, err)}
}

// LoadOrigins reads one origin per row: id, chromosome id, position.
func LoadOrigins(r io.Reader) ([]replisim.OriginRecord, error) {
	cr := newReader(r)
	var records []replisim.OriginRecord
	row := 0
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, invalidRow(row, err)
		}
		row++
		if len(fields) != 3 {
			return nil, invalidRow(row, fmt.Errorf("expected 3 fields, got %d", len(fields)))
		}
		pos, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return nil, invalidRow(row, fmt.Errorf("invalid position %q: %w", fields[2], err))
		}
		records = append(records, replisim.OriginRecord{
			ID:           fields[0],
			ChromosomeID: fields[1],
			Pos:          pos,
		})
	}
	return records, nil
}

// LoadChromosomes reads one chromosome per row: id, followed by an
// even number of contig-boundary columns (start, end, start, end...).
func LoadChromosomes(r io.Reader) ([]replisim.ChromosomeData, error) {
	cr := newReader(r)
	var data []replisim.ChromosomeData
	row := 0
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, invalidRow(row, err)
		}
		row++
		if len(fields) < 3 {
			return nil, invalidRow(row, fmt.Errorf("expected an id and at least one contig, got %d fields", len(fields)))
		}
		boundaries := fields[1:]
		if len(boundaries)%2 != 0 {
			return nil, invalidRow(row, fmt.Errorf("odd number of contig-boundary columns (%d)", len(boundaries)))
		}
		contigs := make([]replisim.Contig, 0, len(boundaries)/2)
		for i := 0; i < len(boundaries); i += 2 {
			start, err := strconv.ParseUint(boundaries[i], 10, 64)
			if err != nil {
				return nil, invalidRow(row, fmt.Errorf("invalid contig start %q: %w", boundaries[i], err))
			}
			end, err := strconv.ParseUint(boundaries[i+1], 10, 64)
			if err != nil {
				return nil, invalidRow(row, fmt.Errorf("invalid contig end %q: %w", boundaries[i+1], err))
			}
			contigs = append(contigs, replisim.Contig{Start: start, End: end})
		}
		data = append(data, replisim.ChromosomeData{ID: fields[0], Contigs: contigs})
	}
	return data, nil
}

// LoadGranules reads one granule per row: chromosome id, x, y, z, in
// file order, and appends it to the matching entry of chromosomes
// (matched by id), mutating the slice in place. The granule index
// within a chromosome is therefore its row order in the file.
func LoadGranules(r io.Reader, chromosomes []replisim.ChromosomeData) error {
	byID := make(map[string]int, len(chromosomes))
	for i, c := range chromosomes {
		chromosomes[i].Granules = nil
		byID[c.ID] = i
	}

	cr := newReader(r)
	row := 0
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return invalidRow(row, err)
		}
		row++
		if len(fields) != 4 {
			return invalidRow(row, fmt.Errorf("expected 4 fields, got %d", len(fields)))
		}
		idx, ok := byID[fields[0]]
		if !ok {
			return invalidRow(row, fmt.Errorf("unknown chromosome id %q", fields[0]))
		}
		x, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return invalidRow(row, fmt.Errorf("invalid x %q: %w", fields[1], err))
		}
		y, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return invalidRow(row, fmt.Errorf("invalid y %q: %w", fields[2], err))
		}
		z, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return invalidRow(row, fmt.Errorf("invalid z %q: %w", fields[3], err))
		}
		chromosomes[idx].Granules = append(chromosomes[idx].Granules, replisim.Vec3{x, y, z})
	}
	return nil
}
