package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initFlags struct {
	force bool
	dir   string
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate sample config and IAM policy",
	Long: `Creates a sample .awsinventory.yaml config file and an IAM policy JSON file
granting the read-only access awsinventory needs. In cross-account mode the
policy belongs to the role assumed in every account.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initFlags.force, "force", false, "Overwrite existing files")
	initCmd.Flags().StringVar(&initFlags.dir, "dir", ".", "Directory to write the files into")
}

func runInit(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	files := []struct {
		name    string
		content string
	}{
		{".awsinventory.yaml", sampleConfig},
		{"awsinventory-policy.json", sampleIAMPolicy},
	}

	var created []string
	for _, f := range files {
		path := filepath.Join(initFlags.dir, f.name)
		wrote, err := writeIfNotExists(out, path, f.content, initFlags.force)
		if err != nil {
			return err
		}
		if wrote {
			created = append(created, path)
		}
	}

	if len(created) == 0 {
		return nil
	}
	for _, p := range created {
		fmt.Fprintf(out, "Created %s\n", p)
	}
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Edit .awsinventory.yaml to select accounts, regions and types")
	fmt.Fprintln(out, "  2. Apply awsinventory-policy.json to the role or user in every account")
	fmt.Fprintln(out, "  3. Run: awsinventory scan")
	return nil
}

func writeIfNotExists(out io.Writer, path, content string, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(out, "Skipping %s (already exists, use --force to overwrite)\n", path)
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

const sampleConfig = `# awsinventory configuration
# Command-line flags override every value here.

# Account selection: use one of profiles, all_profiles or accounts.
# profiles:
#   - prod
#   - staging
# all_profiles: true

# Cross-account mode: assume role_name in each account.
# accounts:
#   - "111111111111"
# accounts_file: accounts.txt
# role_name: InventoryReadOnly
# external_id: my-external-id
# base_profile: org-management

# Regions to inventory (default: all enabled regions per account)
# regions:
#   - us-east-1
#   - eu-west-1

# Resource types (default: all; see 'awsinventory kinds')
# types: [ec2, ebs, snapshot, s3, rds, dynamodb, eks, redshift]

output_dir: inventory
formats: [csv, xlsx]
archive: true

# Accounts inventoried in parallel
concurrency: 4

# Overall timeout and timeout for one resource type in one region
timeout: 30m
call_timeout: 2m

# Prometheus textfile collector output
# metrics_file: /var/lib/node_exporter/textfile/awsinventory.prom

# CloudWatch metric windows per resource type
# metrics:
#   s3:
#     stat: Average
#     period: 24h
#     window: 48h
#   rds:
#     stat: Minimum
#     period: 1h
#     window: 24h
`

const sampleIAMPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Sid": "AwsInventoryReadOnly",
      "Effect": "Allow",
      "Action": [
        "ec2:DescribeInstances",
        "ec2:DescribeVolumes",
        "ec2:DescribeSnapshots",
        "ec2:DescribeRegions",
        "s3:ListAllMyBuckets",
        "s3:GetBucketLocation",
        "s3:GetBucketTagging",
        "rds:DescribeDBInstances",
        "dynamodb:ListTables",
        "dynamodb:DescribeTable",
        "dynamodb:ListTagsOfResource",
        "eks:ListClusters",
        "eks:DescribeCluster",
        "eks:ListNodegroups",
        "eks:DescribeNodegroup",
        "redshift:DescribeClusters",
        "cloudwatch:GetMetricData",
        "cloudwatch:ListMetrics",
        "sts:GetCallerIdentity"
      ],
      "Resource": "*"
    }
  ]
}
`
