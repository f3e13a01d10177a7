// Command replisim runs a single DNA replication simulation from CSV
// input files and prints per-origin firing times to stdout. Flags
// mirror original_source/src/SimulationBatchClient.cpp's single-run
// option set (-o/-c/-s/-r/-x/-n/-g/-a/-d/-b/-p/-f, plus -q/-z for the
// optional periphery/SPB behaviors); a -config file in the same shape
// can supply the same values so a run can be checked into version
// control instead of retyped.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/replisim/replisim"
	"github.com/replisim/replisim/csvdata"
	"github.com/replisim/replisim/liveobserver"
)

// config is the CLI's own option set, independent of replibatch.Params
// so that this command's flags/yaml stay a strict superset of a single
// simulation's needs (input file paths, a --live flag) without
// replibatch needing to know about them.
type config struct {
	OriginFile     string  `yaml:"originFile"`
	ChromosomeFile string  `yaml:"chromosomeFile"`
	StructFile     string  `yaml:"structFile"`
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
	Debug          bool    `yaml:"debug"`
	Live           bool    `yaml:"live"`
	LiveAddr       string  `yaml:"liveAddr"`
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

	flag.StringVar(&configFile, "config", "", "Path to a YAML config file; flags below override its values")
	flag.StringVar(&cfg.OriginFile, "orifile", "", "Path to origin positions CSV (required)")
	flag.StringVar(&cfg.ChromosomeFile, "assyfile", "", "Path to chromosome assembly CSV (required)")
	flag.StringVar(&cfg.StructFile, "structfile", "", "Path to genome structure (granule) CSV (required)")
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
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&cfg.Live, "live", false, "Serve a live websocket feed of simulation events")
	flag.StringVar(&cfg.LiveAddr, "liveaddr", ":8080", "Address to serve the live feed on (with -live)")
	flag.Parse()

	if configFile != "" {
		fileCfg, err := loadConfig(configFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "replisim:", err)
			os.Exit(1)
		}
		cfg = mergeConfig(fileCfg, cfg)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "replisim:", err)
		os.Exit(1)
	}
}

// mergeConfig starts from file values and lets any flag explicitly set
// on the command line win, matching boost::program_options' usual
// precedence of command line over config file.
func mergeConfig(file, flags config) config {
	merged := file
	visited := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { visited[f.Name] = true })

	if visited["orifile"] {
		merged.OriginFile = flags.OriginFile
	}
	if visited["assyfile"] {
		merged.ChromosomeFile = flags.ChromosomeFile
	}
	if visited["structfile"] {
		merged.StructFile = flags.StructFile
	}
	if visited["rnucl"] {
		merged.RNucl = flags.RNucl
	}
	if visited["xnucl"] {
		merged.XNucl = flags.XNucl
	}
	if visited["rpery"] {
		merged.RPeriphery = flags.RPeriphery
	}
	if visited["rspb"] {
		merged.RSPB = flags.RSPB
	}
	if visited["npart"] {
		merged.NParticles = flags.NParticles
	}
	if visited["hgrid"] {
		merged.HGrid = flags.HGrid
	}
	if visited["pact"] {
		merged.PActivate = flags.PActivate
	}
	if visited["dcoef"] {
		merged.DCoef = flags.DCoef
	}
	if visited["dbind"] {
		merged.DBind = flags.DBind
	}
	if visited["pbind"] {
		merged.PBind = flags.PBind
	}
	if visited["vfork"] {
		merged.VFork = flags.VFork
	}
	if visited["seed"] {
		merged.Seed = flags.Seed
	}
	if visited["debug"] {
		merged.Debug = flags.Debug
	}
	if visited["live"] {
		merged.Live = flags.Live
	}
	if visited["liveaddr"] {
		merged.LiveAddr = flags.LiveAddr
	}
	return merged
}

func run(cfg config) error {
	if cfg.OriginFile == "" || cfg.ChromosomeFile == "" || cfg.StructFile == "" {
		return fmt.Errorf("orifile, assyfile, and structfile are required")
	}

	logger := replisim.NewDefaultLogger("replisim", cfg.Debug)

	originRecords, err := readOrigins(cfg.OriginFile)
	if err != nil {
		return err
	}
	chromosomeData, err := readChromosomes(cfg.ChromosomeFile)
	if err != nil {
		return err
	}
	if err := readGranules(cfg.StructFile, chromosomeData); err != nil {
		return err
	}

	spbEnabled := cfg.RSPB > 0
	periEnabled := cfg.RPeriphery > 0
	diffusion := replisim.NewIsotropicDiffusion(cfg.HGrid, cfg.DCoef, cfg.RNucl, cfg.XNucl, cfg.RSPB, cfg.RPeriphery, cfg.Seed)
	activation := replisim.NewProbabilisticActivation(cfg.PActivate, spbEnabled, periEnabled, cfg.Seed+1)
	binding := replisim.NewProbabilisticBinding(cfg.DBind, cfg.PBind, cfg.Seed+2)

	sim, err := replisim.NewSimulation(cfg.VFork, originRecords, chromosomeData, diffusion, activation, binding)
	if err != nil {
		return fmt.Errorf("constructing simulation: %w", err)
	}
	sim.SetLogger(logger)
	sim.InitializeParticles(cfg.NParticles)

	if cfg.Live {
		srv := liveobserver.NewServer(logger)
		sim.RegisterObserver(srv)
		mux := http.NewServeMux()
		mux.HandleFunc("/", srv.ServeWebsocket)
		httpServer := &http.Server{Addr: cfg.LiveAddr, Handler: mux}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warnf("live server stopped: %v", err)
			}
		}()
		logger.Infof("serving live feed on %s", cfg.LiveAddr)
	}

	logger.Infof("starting simulation %s", sim.RunID())
	if err := sim.Run(); err != nil {
		return fmt.Errorf("running simulation: %w", err)
	}

	fmt.Printf("finished at t=%.6f\n", sim.CurrentTime())
	fmt.Println("ORIGIN,CHROMOSOME,POSITION,STATE,FIRING_TIME")
	for _, o := range sim.Origins() {
		fmt.Printf("%s,%s,%d,%s,%.6f\n", o.ID, o.ChromosomeID, o.Pos, o.State, o.FiringTime)
	}
	return nil
}

func readOrigins(path string) ([]replisim.OriginRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csvdata.LoadOrigins(f)
}

func readChromosomes(path string) ([]replisim.ChromosomeData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csvdata.LoadChromosomes(f)
}

func readGranules(path string, chromosomes []replisim.ChromosomeData) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return csvdata.LoadGranules(f, chromosomes)
}
