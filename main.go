package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "etl-benchmark",
	Short:         "Compare a sequential and a partitioned ETL pipeline on a generated CSV dataset",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		v := viper.GetViper()
		if configFile != "" {
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return pipelineErrorf(KindConfig, "config", "failed to read config file %v: %v", configFile, err)
			}
			Logger.Infof("loaded config file %v", v.ConfigFileUsed())
		}

		config := LoadConfig(v)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := NewSystem(config).Run(ctx)
		if err != nil {
			return err
		}

		fmt.Print(report.Render())

		if config.SaveReport {
			if err := report.Save(config.ReportPath); err != nil {
				return err
			}
		}
		if config.ResultsDb != "" {
			storage := &Storage{Dsn: config.ResultsDb}
			if err := storage.Persist(report, config); err != nil {
				return err
			}
		}
		Logger.Infof("benchmark completed successfully")
		return nil
	},
}

func init() {
	defaults := DefaultConfig()
	flags := rootCmd.Flags()
	flags.StringVar(&configFile, "config", "", "optional config file (yaml)")
	flags.String("dataset-path", defaults.DatasetPath, "where to read or generate the CSV dataset")
	flags.Int("rows", defaults.Rows, "rows to generate if the dataset is missing")
	flags.Int64("seed", defaults.Seed, "seed for the dataset generator")
	flags.Int("categories", defaults.Categories, "distinct category values in the generated dataset")
	flags.Int("partition-size", defaults.PartitionRows, "target rows per partition for the partitioned pipeline")
	flags.Float64("filter-threshold", defaults.FilterThreshold, "keep rows whose value is strictly above this threshold")
	flags.Int("warmup", defaults.Warmup, "unmeasured warmup runs per pipeline")
	flags.Int("attempts", defaults.Attempts, "measured attempts per pipeline, best one is kept")
	flags.Float64("tolerance", defaults.Tolerance, "relative tolerance for the cross-pipeline correctness check")
	flags.Bool("save-report", defaults.SaveReport, "persist the comparison report as CSV")
	flags.String("report-path", defaults.ReportPath, "path of the persisted comparison report")
	flags.String("results-db", defaults.ResultsDb, "optional results database: sqlite file path or libsql:// URL")

	viper.SetEnvPrefix("ETL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		panic(fmt.Errorf("failed to bind flags: %w", err))
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		kind, _ := ErrorKindOf(err)
		stage, _ := ErrorStageOf(err)
		if kind != "" {
			Logger.Errorf("benchmark failed at stage '%v' (%v): %v", stage, kind, err)
		} else {
			Logger.Errorf("benchmark failed: %v", err)
		}
		os.Exit(1)
	}
}
