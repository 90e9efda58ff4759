package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wbrown/glogue/glogue/annotations"
	"github.com/wbrown/glogue/glogue/catalog"
	"github.com/wbrown/glogue/glogue/fuzzy"
	"github.com/wbrown/glogue/glogue/planner"
	"github.com/wbrown/glogue/glogue/schema"
	"github.com/wbrown/glogue/glogue/storage"
)

var (
	schemaPath     string
	dbPath         string
	snapshotName   string
	patternPath    string
	costModel      string
	representative string
	verbose        bool
	textOutput     bool
	version        uint64
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "glogue",
		Short:         "Pattern catalog and extend-plan search for graph patterns",
		Long:          "Plans graph pattern matches by cost over schema statistics, resolving label-ambiguous patterns first.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "show planning events and debug logs")

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan a pattern against a statistics snapshot",
		RunE:  runPlan,
	}
	addSchemaFlags(planCmd)
	planCmd.Flags().StringVar(&patternPath, "pattern", "", "pattern YAML file")
	planCmd.Flags().StringVar(&costModel, "cost", "sum", "cost model (sum/max)")
	planCmd.Flags().StringVar(&representative, "representative", "first", "fuzzy vertex representative (first/min)")
	planCmd.Flags().BoolVar(&textOutput, "text", false, "print a compact plan instead of a table")
	planCmd.MarkFlagRequired("pattern")

	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show the catalog entries and extend edges a pattern needs",
		RunE:  runCatalog,
	}
	addSchemaFlags(catalogCmd)
	catalogCmd.Flags().StringVar(&patternPath, "pattern", "", "pattern YAML file (must be single-typed)")
	catalogCmd.MarkFlagRequired("pattern")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Manage stored statistics snapshots",
	}

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Store a statistics YAML file as the next snapshot version",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	importCmd.Flags().StringVar(&dbPath, "db", "", "snapshot store directory")
	importCmd.Flags().StringVar(&snapshotName, "name", "default", "snapshot name")
	importCmd.MarkFlagRequired("db")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print a stored snapshot as YAML",
		RunE:  runShow,
	}
	showCmd.Flags().StringVar(&dbPath, "db", "", "snapshot store directory")
	showCmd.Flags().StringVar(&snapshotName, "name", "", "snapshot name (empty lists names)")
	showCmd.Flags().Uint64Var(&version, "version", 0, "snapshot version (0 = latest)")
	showCmd.MarkFlagRequired("db")

	statsCmd.AddCommand(importCmd, showCmd)
	rootCmd.AddCommand(planCmd, catalogCmd, statsCmd)

	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func addSchemaFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&schemaPath, "schema", "", "statistics YAML file")
	cmd.Flags().StringVar(&dbPath, "db", "", "snapshot store directory (instead of --schema)")
	cmd.Flags().StringVar(&snapshotName, "name", "default", "snapshot name in the store")
	cmd.MarkFlagsMutuallyExclusive("schema", "db")
}

// loadStatistics reads the snapshot named by the schema flags
func loadStatistics() (*schema.Statistics, error) {
	switch {
	case schemaPath != "":
		return schema.LoadFile(schemaPath)
	case dbPath != "":
		store, err := storage.OpenStatsStore(dbPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()

		snap, err := store.Load(snapshotName)
		if err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{"name": snap.Name, "version": snap.Version}).Debug("loaded statistics snapshot")
		return snap.Statistics, nil
	default:
		return nil, errors.New("one of --schema or --db is required")
	}
}

func runPlan(cmd *cobra.Command, args []string) error {
	stats, err := loadStatistics()
	if err != nil {
		return err
	}
	p, err := loadPattern(patternPath, stats)
	if err != nil {
		return err
	}

	opts := planner.DefaultOptions()
	if opts.CostModel, err = planner.ParseCostModel(costModel); err != nil {
		return err
	}
	switch representative {
	case "first":
		opts.Representative = fuzzy.FirstCandidate
	case "min":
		opts.Representative = fuzzy.MinCardinality
	default:
		return errors.Newf("unknown representative strategy %q", representative)
	}

	// Catalog events reach the console through the plan's handler
	if verbose {
		opts.Handler = annotations.ConsoleHandler()
	}

	pl := planner.New(catalog.New(stats, catalog.DefaultOptions()), opts)
	plan, err := pl.Plan(p)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if textOutput {
		fmt.Fprint(out, plan.String())
	} else {
		fmt.Fprint(out, plan.Table(stats))
	}
	if plan.Fuzzy {
		color.New(color.FgYellow).Fprintf(out, "fuzzy correction x%.4g applied (vertices %.4g, edges %.4g)\n",
			plan.VerticesWeight*plan.EdgesWeight, plan.VerticesWeight, plan.EdgesWeight)
	}
	return nil
}

func runCatalog(cmd *cobra.Command, args []string) error {
	stats, err := loadStatistics()
	if err != nil {
		return err
	}
	p, err := loadPattern(patternPath, stats)
	if err != nil {
		return err
	}

	opts := catalog.DefaultOptions()
	if verbose {
		opts.Handler = annotations.ConsoleHandler()
	}
	cat := catalog.New(stats, opts)
	node, err := cat.Ensure(p)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, catalog.Tree(node))
	s := cat.Stats()
	color.New(color.FgCyan).Fprintf(out, "%d nodes, %d extend edges, estimate ~%s rows\n",
		s.Nodes, s.Edges, annotations.FormatCardinality(node.Cardinality))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	stats, err := schema.LoadFile(args[0])
	if err != nil {
		return err
	}

	store, err := storage.OpenStatsStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	v, err := store.Save(snapshotName, stats)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ stored %s version %d (%d vertex types, %d edge types)\n",
		snapshotName, v, len(stats.VertexTypes()), len(stats.AllEdgeTypes()))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	store, err := storage.OpenStatsStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if snapshotName == "" {
		names, err := store.Names()
		if err != nil {
			return err
		}
		for _, name := range names {
			versions, err := store.Versions(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\t%d versions\n", name, len(versions))
		}
		return nil
	}

	var snap *storage.Snapshot
	if version == 0 {
		snap, err = store.Load(snapshotName)
	} else {
		snap, err = store.LoadVersion(snapshotName, version)
	}
	if err != nil {
		return err
	}

	data, err := snap.Statistics.Marshal()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "# %s version %d\n", snap.Name, snap.Version)
	_, err = out.Write(data)
	return err
}
