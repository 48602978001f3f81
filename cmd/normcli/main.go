// Command normcli runs the webnorm calculation on local spreadsheets.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"webnorm/internal/calc/norm"
	"webnorm/internal/config"
	"webnorm/internal/geochem"
	"webnorm/internal/logging"
)

var (
	envFile string
	verbose bool
	logger  *zap.Logger
	conf    *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "normcli",
	Short:        "CIPW normative mineralogy from bulk-rock geochemistry",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		var err error
		if conf, err = config.Load(files...); err != nil {
			return err
		}
		level := conf.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(conf.LogFile, level)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path of a .env file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(templateCmd, previewCmd, calcCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newEngine(c *config.Config) norm.Engine {
	if c.Engine == "http" {
		return norm.NewHTTPEngine(c.EngineURL, c.EngineTimeout)
	}
	return norm.NewExecEngine(c.EngineCmd)
}

func loadFile(path string) (*geochem.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return geochem.Load(filepath.Base(path), f)
}

// writeTable writes t to path, as a workbook when path ends in .xlsx, or
// as csv to stdout when path is empty.
func writeTable(t *geochem.Table, path, sheet string) error {
	if path == "" {
		return t.WriteCSV(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		err = t.WriteXLSX(f, sheet)
	} else {
		err = t.WriteCSV(f)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
