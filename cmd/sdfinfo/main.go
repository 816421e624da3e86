// Command sdfinfo inspects SDF simulation output: per-file block listings
// and assembled multi-file dataset summaries.
package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/PlasmaFAIR/sdf-xarray/dataset"
	"github.com/PlasmaFAIR/sdf-xarray/internal/config"
	"github.com/PlasmaFAIR/sdf-xarray/sdf"
)

var log = logrus.New()

type cliFlags struct {
	verbose       bool
	configPath    string
	dropVariables []string
	keepParticles bool
	probeNames    []string
	separateTimes bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:           "sdfinfo",
		Short:         "Inspect SDF simulation output",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "campaign config file (YAML)")
	root.PersistentFlags().StringSliceVar(&flags.dropVariables, "drop", nil, "variables to drop (raw or canonical names)")
	root.PersistentFlags().BoolVar(&flags.keepParticles, "particles", false, "include per-particle data")
	root.PersistentFlags().StringSliceVar(&flags.probeNames, "probes", nil, "particle probe names")
	root.PersistentFlags().BoolVar(&flags.separateTimes, "separate-times", false, "give each output frequency its own time axis")

	root.AddCommand(newBlocksCmd())
	root.AddCommand(newInfoCmd(flags))
	root.AddCommand(newCombineCmd(flags))
	return root
}

// options folds the config file (if any) and the command-line flags into
// assembly options; flags win.
func (f *cliFlags) options() ([]dataset.OpenOption, error) {
	drop := f.dropVariables
	probes := f.probeNames
	keep := f.keepParticles
	separate := f.separateTimes

	if f.configPath != "" {
		cfg, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		log.Debugf("loaded config from %s", f.configPath)
		drop = append(append([]string{}, cfg.DropVariables...), drop...)
		probes = append(append([]string{}, cfg.ProbeNames...), probes...)
		keep = keep || cfg.KeepParticles
		separate = separate || cfg.SeparateTimes
	}

	var opts []dataset.OpenOption
	if len(drop) > 0 {
		opts = append(opts, dataset.WithDropVariables(drop...))
	}
	if len(probes) > 0 {
		opts = append(opts, dataset.WithProbeNames(probes...))
	}
	opts = append(opts,
		dataset.WithKeepParticles(keep),
		dataset.WithSeparateTimes(separate),
	)
	return opts, nil
}

// newBlocksCmd lists the raw blocks of one file, below the dataset layer.
func newBlocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blocks <file>",
		Short: "List the raw blocks of an SDF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := sdf.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			h := f.Header()
			fmt.Printf("%s: %s, step %d, t=%g s, %d blocks\n",
				args[0], h.CodeName, h.Step, h.Time, h.NBlocks)

			for _, name := range sortedNames(f.Grids()) {
				g := f.Grids()[name]
				fmt.Printf("  mesh      %-40s %v %s\n", name, g.Shape, axisList(g.Labels))
			}
			for _, name := range sortedNames(f.Variables()) {
				v := f.Variables()[name]
				kind := "variable"
				if v.IsPointData {
					kind = "points"
				}
				fmt.Printf("  %-9s %-40s %v [%s]\n", kind, name, v.Shape, v.Units)
			}
			for _, name := range sortedNames(f.Constants()) {
				c := f.Constants()[name]
				fmt.Printf("  constant  %-40s %v\n", name, c.Value())
			}
			return nil
		},
	}
}

// newInfoCmd assembles one file and prints the dataset view.
func newInfoCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Summarize one file as an assembled dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			ds, err := dataset.Open(args[0], opts...)
			if err != nil {
				return err
			}
			defer ds.Close()
			printDataset(ds)
			return nil
		},
	}
}

// newCombineCmd assembles a file series and prints the consolidated view.
func newCombineCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "combine <pattern>...",
		Short: "Summarize a file series as one dataset",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := dataset.ResolvePaths(args...)
			if err != nil {
				return err
			}
			log.Debugf("combining %d files", len(paths))

			opts, err := flags.options()
			if err != nil {
				return err
			}
			ds, err := dataset.OpenMulti(paths, opts...)
			if err != nil {
				return err
			}
			defer ds.Close()
			printDataset(ds)
			return nil
		},
	}
}

func printDataset(ds *dataset.Dataset) {
	fmt.Println("Coordinates:")
	for _, name := range ds.CoordNames() {
		c, _ := ds.Get(name)
		fmt.Printf("  %-40s %v (%s)\n", name, c.Shape, strings.Join(c.Dims, ", "))
	}
	fmt.Println("Data variables:")
	for _, name := range ds.VarNames() {
		v, _ := ds.Get(name)
		fmt.Printf("  %-40s %v (%s)\n", name, v.Shape, strings.Join(v.Dims, ", "))
	}
	fmt.Println("Attributes:")
	for _, key := range sortedNames(ds.Attrs) {
		fmt.Printf("  %-20s %v\n", key, ds.Attrs[key])
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func axisList(labels []string) string {
	return "(" + strings.Join(labels, ", ") + ")"
}
