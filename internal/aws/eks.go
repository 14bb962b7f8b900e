package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	"github.com/rs/zerolog/log"

	"github.com/ppiankov/awsinventory/internal/record"
)

// defaultNodeDiskGiB is the EKS managed node group default when DiskSize is
// unset (launch templates carry their own volumes).
const defaultNodeDiskGiB = 20

// EKSAPI is the minimal interface for EKS operations.
type EKSAPI interface {
	ListClusters(ctx context.Context, input *eks.ListClustersInput, opts ...func(*eks.Options)) (*eks.ListClustersOutput, error)
	DescribeCluster(ctx context.Context, input *eks.DescribeClusterInput, opts ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
	ListNodegroups(ctx context.Context, input *eks.ListNodegroupsInput, opts ...func(*eks.Options)) (*eks.ListNodegroupsOutput, error)
	DescribeNodegroup(ctx context.Context, input *eks.DescribeNodegroupInput, opts ...func(*eks.Options)) (*eks.DescribeNodegroupOutput, error)
}

// EKSEnumerator lists EKS clusters with the node disk capacity of their
// managed node groups.
type EKSEnumerator struct {
	newClient func(awssdk.Config) EKSAPI
}

// Kind returns the resource kind.
func (e *EKSEnumerator) Kind() string { return KindEKS }

// Global reports false: clusters are regional.
func (e *EKSEnumerator) Global() bool { return false }

// Enumerate lists every cluster in the region that is not being deleted.
func (e *EKSEnumerator) Enumerate(ctx context.Context, cfg awssdk.Config, region string) ([]record.Record, error) {
	client := e.newClient(Regional(cfg, region))

	var names []string
	paginator := eks.NewListClustersPaginator(client, &eks.ListClustersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list EKS clusters: %w", err)
		}
		names = append(names, page.Clusters...)
	}

	records := make([]record.Record, 0, len(names))
	for _, name := range names {
		r := newItem(name, name)

		out, err := client.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: awssdk.String(name)})
		if err != nil || out.Cluster == nil {
			log.Warn().Err(err).Str("region", region).Str("cluster", name).Msg("Failed to describe EKS cluster")
			records = append(records, r)
			continue
		}

		cluster := out.Cluster
		if cluster.Status == ekstypes.ClusterStatusDeleting {
			continue
		}

		r.Set("version", record.StringOrNull(deref(cluster.Version)))
		r.Set("status", record.String(string(cluster.Status)))
		r.Set("create_time", timeValue(cluster.CreatedAt))

		groups, nodes, diskGiB, err := nodegroupCapacity(ctx, client, name)
		if err != nil {
			log.Warn().Err(err).Str("region", region).Str("cluster", name).Msg("Failed to list EKS node groups")
		}
		r.Set("nodegroup_count", record.Int(int64(groups)))
		r.Set("node_count", record.Int(int64(nodes)))
		record.SetSizes(&r, record.FromGiB(float64(diskGiB)))
		setTags(&r, KindEKS, cluster.Tags)

		records = append(records, r)
	}

	return records, nil
}

// nodegroupCapacity sums desired nodes and their root disk size across the
// cluster's managed node groups.
func nodegroupCapacity(ctx context.Context, client EKSAPI, cluster string) (groups, nodes int, diskGiB int64, err error) {
	var names []string
	paginator := eks.NewListNodegroupsPaginator(client, &eks.ListNodegroupsInput{ClusterName: awssdk.String(cluster)})
	for paginator.HasMorePages() {
		page, perr := paginator.NextPage(ctx)
		if perr != nil {
			return 0, 0, 0, perr
		}
		names = append(names, page.Nodegroups...)
	}

	for _, ng := range names {
		out, derr := client.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
			ClusterName:   awssdk.String(cluster),
			NodegroupName: awssdk.String(ng),
		})
		if derr != nil || out.Nodegroup == nil {
			log.Debug().Err(derr).Str("cluster", cluster).Str("nodegroup", ng).Msg("Skipping node group")
			continue
		}
		groups++

		desired := int32(0)
		if sc := out.Nodegroup.ScalingConfig; sc != nil {
			desired = derefInt32(sc.DesiredSize)
		}
		disk := derefInt32(out.Nodegroup.DiskSize)
		if disk == 0 {
			disk = defaultNodeDiskGiB
		}
		nodes += int(desired)
		diskGiB += int64(desired) * int64(disk)
	}
	return groups, nodes, diskGiB, nil
}
