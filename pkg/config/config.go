// Package config merges command-line flags, a YAML config file, and
// environment variables into the settings a lint run needs, the same
// viper-backed layering the CLI's own command tree uses for everything
// else.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Settings is the fully-resolved configuration for one invocation.
type Settings struct {
	Strict        bool
	GNU           bool
	Tolerant      bool
	IgnoreMissing bool
	ShowRef       bool
	Quiet         bool
	Verbose       bool
	Browse        bool
	LogFile       string
	LogJSON       bool
}

var cfgFile string

// BindFlags registers the persistent flags config.Load reads back, against
// the given command's flag set.
func BindFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.dwarflint.yaml)")
	cmd.PersistentFlags().Bool("strict", false, "promote bloat/suboptimal findings to errors")
	cmd.PersistentFlags().Bool("gnu", false, "accept GNU producer extensions that would otherwise be non-standard-form errors")
	cmd.PersistentFlags().Bool("tolerant", false, "only ever report explicit errors, never promote by impact")
	cmd.PersistentFlags().BoolP("ignore-missing", "i", false, "do not report missing mandatory sections as errors")
	cmd.PersistentFlags().Bool("ref", false, "show the full reference chain for each diagnostic")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "suppress warnings, only report errors")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose diagnostic logging")
	cmd.PersistentFlags().Bool("browse", false, "open an interactive browser over the diagnostics instead of printing them")
	cmd.PersistentFlags().String("log-file", "", "also write structured logs to this file")
	cmd.PersistentFlags().Bool("log-json", false, "write the log file as JSON instead of text")

	_ = viper.BindPFlag("strict", cmd.PersistentFlags().Lookup("strict"))
	_ = viper.BindPFlag("gnu", cmd.PersistentFlags().Lookup("gnu"))
	_ = viper.BindPFlag("tolerant", cmd.PersistentFlags().Lookup("tolerant"))
	_ = viper.BindPFlag("ignore-missing", cmd.PersistentFlags().Lookup("ignore-missing"))
	_ = viper.BindPFlag("ref", cmd.PersistentFlags().Lookup("ref"))
	_ = viper.BindPFlag("quiet", cmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", cmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("browse", cmd.PersistentFlags().Lookup("browse"))
	_ = viper.BindPFlag("log-file", cmd.PersistentFlags().Lookup("log-file"))
	_ = viper.BindPFlag("log-json", cmd.PersistentFlags().Lookup("log-json"))
}

// Init reads the config file (if any) and environment variables, to be
// called from cobra.OnInitialize.
func Init() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dwarflint")
	}

	viper.SetEnvPrefix("DWARFLINT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}

// Load resolves Settings from whatever Init populated viper with.
func Load() Settings {
	return Settings{
		Strict:        viper.GetBool("strict"),
		GNU:           viper.GetBool("gnu"),
		Tolerant:      viper.GetBool("tolerant"),
		IgnoreMissing: viper.GetBool("ignore-missing"),
		ShowRef:       viper.GetBool("ref"),
		Quiet:         viper.GetBool("quiet"),
		Verbose:       viper.GetBool("verbose"),
		Browse:        viper.GetBool("browse"),
		LogFile:       viper.GetString("log-file"),
		LogJSON:       viper.GetBool("log-json"),
	}
}
