// Command replibatch runs many replication simulation replicates
// across a local worker pool and writes aggregated per-origin firing
// statistics to CSV, mirroring the two output files
// original_source/src/SimulationBatchClient.cpp's master rank wrote
// (completion times and firing times per structure/iteration), except
// that "structures" here means every genome structure CSV found in
// -structdir, each run -niter times.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/replisim/replisim"
	"github.com/replisim/replisim/csvdata"
	"github.com/replisim/replisim/replibatch"
)

type config struct {
	OriginFile     string  `yaml:"originFile"`
	ChromosomeFile string  `yaml:"chromosomeFile"`
	StructDir      string  `yaml:"structDir"`
	OutDir         string  `yaml:"outDir"`
	OutKey         string  `yaml:"outKey"`
	NIter          int     `yaml:"nIter"`
	Workers        int     `yaml:"workers"`
	RNucl          float64 `yaml:"rNucl"`
	XNucl          float64 `yaml:"xNucl"`
	RPeriphery     float64 `yaml:"rPeriphery"`
	RSPB           float64 `yaml:"rSPB"`
	NParticles     int     `yaml:"nParticles"`
	HGrid          float64 `yaml:"hGrid"`
	PActivate      float64 `yaml:"pActivate"`
	DCoef          float64 `yaml:"dCoef"`
	DBind          float64 `yaml:"dBind"`
	PBind          float64 `yaml:"pBind"`
	VFork          float64 `yaml:"vFork"`
	Seed           int64   `yaml:"seed"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	var cfg config
	var configFile string

	flag.StringVar(&configFile, "config", "", "Path to a YAML config file supplying every option below")
	flag.StringVar(&cfg.OriginFile, "orifile", "", "Path to origin positions CSV (required)")
	flag.StringVar(&cfg.ChromosomeFile, "assyfile", "", "Path to chromosome assembly CSV (required)")
	flag.StringVar(&cfg.StructDir, "structdir", "", "Path to a directory of genome structure CSVs, one file per replicate structure (required)")
	flag.StringVar(&cfg.OutDir, "outdir", "", "Path to output directory (required)")
	flag.StringVar(&cfg.OutKey, "outkey", "batch", "Simulation key, used as the output file name prefix")
	flag.IntVar(&cfg.NIter, "niter", 1, "Number of iterations per structure")
	flag.IntVar(&cfg.Workers, "workers", 1, "Number of concurrent worker goroutines")
	flag.Float64Var(&cfg.RNucl, "rnucl", 0, "Nucleus radius, in um (required)")
	flag.Float64Var(&cfg.XNucl, "xnucl", 0, "Nucleolus displacement, in um (required)")
	flag.Float64Var(&cfg.RPeriphery, "rpery", 0, "Periphery radius, in um (0 disables peripheral inactivation)")
	flag.Float64Var(&cfg.RSPB, "rspb", 0, "Spindle pole body radius, in um (0 disables SPB activation)")
	flag.IntVar(&cfg.NParticles, "npart", 1, "Number of activation factors")
	flag.Float64Var(&cfg.HGrid, "hgrid", 0, "Step size of the diffusion grid, in um (required)")
	flag.Float64Var(&cfg.PActivate, "pact", 0, "Activation probability (required if -rspb is set)")
	flag.Float64Var(&cfg.DCoef, "dcoef", 0, "Effective diffusion coefficient, in um^2/s (required)")
	flag.Float64Var(&cfg.DBind, "dbind", 0, "Maximal binding distance, in um (required)")
	flag.Float64Var(&cfg.PBind, "pbind", 0, "Binding probability (required)")
	flag.Float64Var(&cfg.VFork, "vfork", 0, "Replication fork velocity, in b/s (required)")
	flag.Int64Var(&cfg.Seed, "seed", 1, "Random seed")
	flag.Parse()

	if configFile != "" {
		fileCfg, err := loadConfig(configFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "replibatch:", err)
			os.Exit(1)
		}
		cfg = fileCfg
	}

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "replibatch:", err)
		os.Exit(1)
	}
}

func run(cfg config) error {
	if cfg.OriginFile == "" || cfg.ChromosomeFile == "" || cfg.StructDir == "" || cfg.OutDir == "" {
		return fmt.Errorf("orifile, assyfile, structdir, and outdir are required")
	}

	structFiles, err := listStructFiles(cfg.StructDir)
	if err != nil {
		return fmt.Errorf("listing structdir: %w", err)
	}
	if len(structFiles) == 0 {
		return fmt.Errorf("no genome structure files found in %s", cfg.StructDir)
	}

	params := replibatch.Params{
		HGrid:       cfg.HGrid,
		DCoef:       cfg.DCoef,
		RNucl:       cfg.RNucl,
		XNucl:       cfg.XNucl,
		RSPB:        cfg.RSPB,
		RPeriphery:  cfg.RPeriphery,
		SPBEnabled:  cfg.RSPB > 0,
		PeriEnabled: cfg.RPeriphery > 0,
		PActivate:   cfg.PActivate,
		DBind:       cfg.DBind,
		PBind:       cfg.PBind,
		VFork:       cfg.VFork,
		NParticles:  cfg.NParticles,
		Seed:        cfg.Seed,
	}

	var jobs []replibatch.Job
	for _, structFile := range structFiles {
		for iter := 0; iter < cfg.NIter; iter++ {
			jobs = append(jobs, replibatch.Job{
				StructFile:     structFile,
				ChromosomeFile: cfg.ChromosomeFile,
				OriginFile:     cfg.OriginFile,
				Params:         params,
				Iteration:      iter,
			})
		}
	}

	results, err := replibatch.Run(context.Background(), jobs, cfg.Workers)
	if err != nil {
		return err
	}

	originRecords, err := readOrigins(cfg.OriginFile)
	if err != nil {
		return err
	}
	originIDs := make([]string, len(originRecords))
	for i, r := range originRecords {
		originIDs[i] = r.ID
	}

	return writeResults(cfg.OutDir, cfg.OutKey, originIDs, results)
}

func listStructFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

func readOrigins(path string) ([]replisim.OriginRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csvdata.LoadOrigins(f)
}

func writeResults(outDir, outKey string, originIDs []string, results []replibatch.Result) error {
	completionPath := filepath.Join(outDir, outKey+"_completionTimes.csv")
	firingPath := filepath.Join(outDir, outKey+"_firingTimes.csv")

	completionFile, err := os.Create(completionPath)
	if err != nil {
		return err
	}
	defer completionFile.Close()
	firingFile, err := os.Create(firingPath)
	if err != nil {
		return err
	}
	defer firingFile.Close()

	completionWriter := csv.NewWriter(completionFile)
	defer completionWriter.Flush()
	firingWriter := csv.NewWriter(firingFile)
	defer firingWriter.Flush()

	if err := completionWriter.Write([]string{"STRUCTURE", "ITERATION", "COMPLETION_TIME"}); err != nil {
		return err
	}
	firingHeader := append([]string{"STRUCTURE", "ITERATION"}, originIDs...)
	if err := firingWriter.Write(firingHeader); err != nil {
		return err
	}

	for _, r := range results {
		structName := filepath.Base(r.StructFile)
		iter := strconv.Itoa(r.Iteration)
		if r.Err != nil {
			if err := completionWriter.Write([]string{structName, iter, "ERROR:" + r.Err.Error()}); err != nil {
				return err
			}
			continue
		}
		if err := completionWriter.Write([]string{structName, iter, strconv.FormatFloat(r.CurrentTime, 'f', -1, 64)}); err != nil {
			return err
		}
		row := []string{structName, iter}
		for _, sum := range r.FiringTimeSums {
			row = append(row, strconv.FormatFloat(sum, 'f', -1, 64))
		}
		if err := firingWriter.Write(row); err != nil {
			return err
		}
	}
	return nil
}
