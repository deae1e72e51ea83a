package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/josephlewis42/jobsh/core/config"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	noBanner bool
)

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// SilentExitError ends the program with Code without printing anything.
type SilentExitError struct {
	Code int
}

func (e *SilentExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewSilentExit returns an error that exits with code, or nil for zero.
func NewSilentExit(code int) error {
	if code == 0 {
		return nil
	}
	return &SilentExitError{Code: code}
}

// IsSilentExit extracts the exit code from a SilentExitError.
func IsSilentExit(err error) (int, bool) {
	var silent *SilentExitError
	if errors.As(err, &silent) {
		return silent.Code, true
	}
	return 0, false
}

// rootCmd runs the interactive shell when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "jobsh",
	Short: "Job control shell",
	Long: `An interactive command interpreter that runs programs in the foreground
or background, redirects their input and output and tracks every process it
started.`,
	Args: cobra.NoArgs,
	// Errors are reported by Execute so exit statuses stay quiet.
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		// Without --config nothing is persisted.
		configuration := config.Default()
		if cmd.Flags().Changed("config") {
			var err error
			if configuration, err = loadConfig(); err != nil {
				return err
			}
		}

		return runShell(cmd, configuration, !noBanner && configuration.Banner)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// It returns the process exit status.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := IsSilentExit(err); ok {
			return code
		}
		rootCmd.PrintErrln("Error:", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "config path")
	rootCmd.PersistentFlags().BoolVar(&noBanner, "no-banner", false, "don't print the startup banner")
}
