package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/rs/zerolog/log"

	"github.com/ppiankov/awsinventory/internal/record"
)

// RDSAPI is the minimal interface for RDS operations.
type RDSAPI interface {
	DescribeDBInstances(ctx context.Context, input *rds.DescribeDBInstancesInput, opts ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

// RDSEnumerator lists RDS instances with allocated and free storage.
type RDSEnumerator struct {
	newClient  func(awssdk.Config) RDSAPI
	newMetrics func(awssdk.Config) CloudWatchAPI
	window     Window
}

// Kind returns the resource kind.
func (e *RDSEnumerator) Kind() string { return KindRDS }

// Global reports false: DB instances are regional.
func (e *RDSEnumerator) Global() bool { return false }

// Enumerate lists every DB instance that is not being deleted.
func (e *RDSEnumerator) Enumerate(ctx context.Context, cfg awssdk.Config, region string) ([]record.Record, error) {
	rcfg := Regional(cfg, region)

	instances, err := listDBInstances(ctx, e.newClient(rcfg))
	if err != nil {
		return nil, fmt.Errorf("list RDS instances: %w", err)
	}
	if len(instances) == 0 {
		return nil, nil
	}

	queries := make([]MetricQuery, len(instances))
	for i, db := range instances {
		queries[i] = MetricQuery{
			Namespace:  "AWS/RDS",
			Name:       "FreeStorageSpace",
			Dimensions: []Dimension{{Name: "DBInstanceIdentifier", Value: deref(db.DBInstanceIdentifier)}},
		}
	}
	free, err := NewMetricsFetcher(e.newMetrics(rcfg)).FetchMany(ctx, queries, e.window)
	if err != nil {
		log.Warn().Err(err).Str("region", region).Msg("Failed to fetch RDS free storage")
		free = map[int]float64{}
	}

	records := make([]record.Record, 0, len(instances))
	for i, db := range instances {
		id := deref(db.DBInstanceIdentifier)
		r := newItem(id, id)
		r.Set("engine", record.StringOrNull(deref(db.Engine)))
		r.Set("engine_version", record.StringOrNull(deref(db.EngineVersion)))
		r.Set("instance_class", record.StringOrNull(deref(db.DBInstanceClass)))
		r.Set("status", record.StringOrNull(deref(db.DBInstanceStatus)))
		r.Set("multi_az", record.Bool(awssdk.ToBool(db.MultiAZ)))
		r.Set("storage_type", record.StringOrNull(deref(db.StorageType)))
		r.Set("availability_zone", record.StringOrNull(deref(db.AvailabilityZone)))
		r.Set("free_storage_gib", record.Number(record.FromBytes(free[i]).GiB))
		record.SetSizes(&r, record.FromGiB(float64(derefInt32(db.AllocatedStorage))))
		setTags(&r, KindRDS, rdsTags(db.TagList))

		records = append(records, r)
	}

	return records, nil
}

func listDBInstances(ctx context.Context, client RDSAPI) ([]rdstypes.DBInstance, error) {
	var instances []rdstypes.DBInstance
	paginator := rds.NewDescribeDBInstancesPaginator(client, &rds.DescribeDBInstancesInput{})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, db := range page.DBInstances {
			if deref(db.DBInstanceStatus) == "deleting" {
				continue
			}
			instances = append(instances, db)
		}
	}
	return instances, nil
}

func rdsTags(tags []rdstypes.Tag) map[string]string {
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
