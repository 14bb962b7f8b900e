package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ppiankov/awsinventory/internal/config"
	"github.com/ppiankov/awsinventory/internal/logging"
)

var (
	verbose bool
	profile string
	version string
	commit  string
	date    string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "awsinventory",
	Short: "awsinventory: multi-account AWS storage and capacity inventory",
	Long: `awsinventory enumerates EC2 instances, EBS volumes, snapshots, S3 buckets,
RDS instances, DynamoDB tables, EKS clusters and Redshift clusters across
accounts and regions, and reports counts and sizes per account, region and
resource type.

Accounts are selected by profile, by every local profile, or by assuming a
role into a list of account ids.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose, nil)
		loaded, err := config.Load(".")
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load config file")
		} else {
			cfg = loaded
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with injected build info.
func Execute(v, c, d string) error {
	version = v
	commit = c
	date = d
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "AWS profile name (shorthand for --profiles with one entry)")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(kindsCmd)
}
