// Package replibatch drives many independent replication simulation
// replicates across a local worker pool and aggregates their firing
// statistics. Grounded on original_source/src/SimulationBatchClient.cpp's
// master/worker design: that client distributed replicates over an MPI
// ring of worker ranks, each loading one genome structure file and
// running some number of iterations against it, and reported results
// back to a root rank that wrote them to CSV. A goroutine pool replaces
// the MPI ring (see DESIGN.md for why); the CSV writing itself stays
// with the caller, since this package only aggregates in memory.
package replibatch

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/niceyeti/channerics"

	"github.com/replisim/replisim"
	"github.com/replisim/replisim/csvdata"
)

// Params holds the simulation parameters that SimulationBatchClient.cpp
// took as command-line options, one set shared by every job in a batch.
type Params struct {
	HGrid       float64
	DCoef       float64
	RNucl       float64
	XNucl       float64
	RSPB        float64
	RPeriphery  float64
	SPBEnabled  bool
	PeriEnabled bool
	PActivate   float64
	DBind       float64
	PBind       float64
	VFork       float64
	NParticles  int
	Seed        int64
}

// behaviors constructs the three strategies for one run, seeded from
// p.Seed+seedOffset, p.Seed+seedOffset+1 and p.Seed+seedOffset+2.
// runJob passes 3*Iteration, so each iteration gets seeds of its own,
// while jobs for different structure files with the same Iteration use
// the same seeds.
func (p Params) behaviors(seedOffset int64) (replisim.DiffusionBehavior, replisim.ActivationBehavior, replisim.BindingBehavior) {
	seed := p.Seed + seedOffset
	diffusion := replisim.NewIsotropicDiffusion(p.HGrid, p.DCoef, p.RNucl, p.XNucl, p.RSPB, p.RPeriphery, seed)
	activation := replisim.NewProbabilisticActivation(p.PActivate, p.SPBEnabled, p.PeriEnabled, seed+1)
	binding := replisim.NewProbabilisticBinding(p.DBind, p.PBind, seed+2)
	return diffusion, activation, binding
}

// Job describes one replicate: a genome structure (granule positions),
// held fixed across Iteration runs against the same origin and
// chromosome layout, mirroring the C++ client's structFile/iteration
// pairing.
type Job struct {
	StructFile     string
	ChromosomeFile string
	OriginFile     string
	Params         Params
	Iteration      int
}

// Result is one replicate's outcome: the simulation's final time, and
// per-origin firing counts/time sums aligned to the origin ids loaded
// from Job.OriginFile, in file order, read from a
// MultiSimulationObserver one origin id at a time.
type Result struct {
	Iteration      int
	StructFile     string
	RunID          uuid.UUID
	CurrentTime    float64
	OriginIDs      []string
	FiringCounts   []float64
	FiringTimeSums []float64
	Err            error
}

type workItem struct {
	idx int
	job Job
}

type indexedResult struct {
	idx    int
	result Result
}

// Run distributes jobs across workers goroutines, each loading its own
// data, building an independent Simulation, and running it to
// completion. Results are returned in the order their jobs appear in
// jobs, regardless of completion order. A worker failure (bad input
// data or a Simulation.Run error) produces a Result with Err set
// rather than aborting the batch; ctx cancellation stops workers from
// picking up further jobs and any job left unprocessed is reported
// with ctx.Err().
func Run(ctx context.Context, jobs []Job, workers int) ([]Result, error) {
	if workers < 1 {
		workers = 1
	}

	work := make(chan workItem, len(jobs))
	for i, j := range jobs {
		work <- workItem{idx: i, job: j}
	}
	close(work)

	done := ctx.Done()
	resultChans := make([]<-chan indexedResult, workers)
	for w := 0; w < workers; w++ {
		resultChans[w] = runWorker(ctx, work)
	}

	results := make([]Result, len(jobs))
	have := make([]bool, len(jobs))
	for r := range channerics.Merge(done, resultChans...) {
		results[r.idx] = r.result
		have[r.idx] = true
	}

	for i := range results {
		if !have[i] {
			results[i] = Result{Iteration: jobs[i].Iteration, StructFile: jobs[i].StructFile, Err: ctx.Err()}
		}
	}

	return results, nil
}

func runWorker(ctx context.Context, work <-chan workItem) <-chan indexedResult {
	out := make(chan indexedResult)
	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case item, ok := <-work:
				if !ok {
					return
				}
				r := indexedResult{idx: item.idx, result: runJob(item.job)}
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func runJob(job Job) Result {
	result := Result{Iteration: job.Iteration, StructFile: job.StructFile}

	originRecords, err := loadOrigins(job.OriginFile)
	if err != nil {
		result.Err = fmt.Errorf("loading origins: %w", err)
		return result
	}
	result.OriginIDs = originIDs(originRecords)

	chromosomeData, err := loadChromosomes(job.ChromosomeFile)
	if err != nil {
		result.Err = fmt.Errorf("loading chromosomes: %w", err)
		return result
	}

	if err := loadGranules(job.StructFile, chromosomeData); err != nil {
		result.Err = fmt.Errorf("loading granules: %w", err)
		return result
	}

	diffusion, activation, binding := job.Params.behaviors(int64(job.Iteration) * 3)

	sim, err := replisim.NewSimulation(job.Params.VFork, originRecords, chromosomeData, diffusion, activation, binding)
	if err != nil {
		result.Err = fmt.Errorf("constructing simulation: %w", err)
		return result
	}
	sim.InitializeParticles(job.Params.NParticles)

	observer := replisim.NewMultiSimulationObserver()
	sim.RegisterObserver(observer)

	if err := sim.Run(); err != nil {
		result.Err = fmt.Errorf("running simulation: %w", err)
		return result
	}
	sim.ClearObservers()

	result.RunID = sim.RunID()
	result.CurrentTime = sim.CurrentTime()
	result.FiringCounts = make([]float64, len(result.OriginIDs))
	result.FiringTimeSums = make([]float64, len(result.OriginIDs))
	for i, id := range result.OriginIDs {
		result.FiringCounts[i] = float64(observer.FireCount(id))
		result.FiringTimeSums[i] = observer.FireTimeSum(id)
	}
	return result
}

func originIDs(records []replisim.OriginRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

func loadOrigins(path string) ([]replisim.OriginRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csvdata.LoadOrigins(f)
}

func loadChromosomes(path string) ([]replisim.ChromosomeData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csvdata.LoadChromosomes(f)
}

func loadGranules(path string, chromosomes []replisim.ChromosomeData) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return csvdata.LoadGranules(f, chromosomes)
}
