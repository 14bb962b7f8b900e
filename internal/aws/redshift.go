package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	rstypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"

	"github.com/ppiankov/awsinventory/internal/record"
)

// RedshiftAPI is the minimal interface for Redshift operations.
type RedshiftAPI interface {
	DescribeClusters(ctx context.Context, input *redshift.DescribeClustersInput, opts ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error)
}

// RedshiftEnumerator lists provisioned Redshift clusters with their total
// storage capacity.
type RedshiftEnumerator struct {
	newClient func(awssdk.Config) RedshiftAPI
}

// Kind returns the resource kind.
func (e *RedshiftEnumerator) Kind() string { return KindRedshift }

// Global reports false: clusters are regional.
func (e *RedshiftEnumerator) Global() bool { return false }

// Enumerate lists every cluster in the region that is not being deleted.
func (e *RedshiftEnumerator) Enumerate(ctx context.Context, cfg awssdk.Config, region string) ([]record.Record, error) {
	client := e.newClient(Regional(cfg, region))

	var records []record.Record
	paginator := redshift.NewDescribeClustersPaginator(client, &redshift.DescribeClustersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe Redshift clusters: %w", err)
		}

		for _, c := range page.Clusters {
			status := deref(c.ClusterStatus)
			if status == "deleting" || status == "final-snapshot" {
				continue
			}

			id := deref(c.ClusterIdentifier)
			r := newItem(id, id)
			r.Set("node_type", record.StringOrNull(deref(c.NodeType)))
			r.Set("status", record.StringOrNull(status))
			r.Set("node_count", int32Value(c.NumberOfNodes))
			r.Set("availability_zone", record.StringOrNull(deref(c.AvailabilityZone)))
			r.Set("create_time", timeValue(c.ClusterCreateTime))
			record.SetSizes(&r, record.FromMiB(float64(derefInt64(c.TotalStorageCapacityInMegaBytes))))
			setTags(&r, KindRedshift, redshiftTags(c.Tags))

			records = append(records, r)
		}
	}

	return records, nil
}

func redshiftTags(tags []rstypes.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		if t.Key != nil {
			m[*t.Key] = deref(t.Value)
		}
	}
	return m
}
