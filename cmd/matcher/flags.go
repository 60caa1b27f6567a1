package main

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/shl-matching/internal/config"
)

// flagKeys maps command line flags to config keys
var flagKeys = map[string]string{
	"primary":          config.KeyPrimaryPath,
	"candidates":       config.KeyCandidateDir,
	"output":           config.KeyOutputDir,
	"workers":          config.KeyWorkers,
	"record-timeout":   config.KeyRecordTimeout,
	"min-enrich-score": config.KeyMinEnrichScore,
	"report-format":    config.KeyReportFormat,
	"debug":            config.KeyDebug,
	"log-level":        config.KeyLogLevel,
	"log-format":       config.KeyLogFormat,
	"host":             config.KeyWebHost,
	"port":             config.KeyWebPort,
}

// bindFlags binds the flags of the executing command to their config keys.
// Flags left unset fall through to the environment, the config file and the defaults.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("failed to bind %s flag: %w", f.Name, bindErr)
		}
	})
	return err
}
