package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/awsinventory/internal/aws"
)

var kindDescriptions = map[string]string{
	aws.KindEC2:      "EC2 instances with attached EBS capacity",
	aws.KindEBS:      "EBS volumes",
	aws.KindSnapshot: "EBS snapshots owned by the account",
	aws.KindS3:       "S3 buckets with stored bytes per storage class",
	aws.KindRDS:      "RDS instances with allocated and free storage",
	aws.KindDynamoDB: "DynamoDB tables",
	aws.KindEKS:      "EKS clusters with managed node group disk",
	aws.KindRedshift: "Redshift clusters with total storage capacity",
}

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the resource types that can be inventoried",
	RunE: func(cmd *cobra.Command, _ []string) error {
		enums, err := aws.Enumerators(aws.AllKinds, aws.Options{})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tSCOPE\tDESCRIPTION")
		for _, e := range enums {
			where := "regional"
			if e.Global() {
				where = "account"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Kind(), where, kindDescriptions[e.Kind()])
		}
		return w.Flush()
	},
}
