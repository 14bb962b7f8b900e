package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/ppiankov/awsinventory/internal/record"
)

// SnapshotAPI is the minimal interface for snapshot operations.
type SnapshotAPI interface {
	DescribeSnapshots(ctx context.Context, input *ec2.DescribeSnapshotsInput, opts ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error)
}

// SnapshotEnumerator lists self-owned EBS snapshots. Size is the size of
// the source volume, which bounds the snapshot's stored data.
type SnapshotEnumerator struct {
	newClient func(awssdk.Config) SnapshotAPI
}

// Kind returns the resource kind.
func (e *SnapshotEnumerator) Kind() string { return KindSnapshot }

// Global reports false: snapshots are regional.
func (e *SnapshotEnumerator) Global() bool { return false }

// Enumerate lists every snapshot owned by the account.
func (e *SnapshotEnumerator) Enumerate(ctx context.Context, cfg awssdk.Config, region string) ([]record.Record, error) {
	snapshots, err := listOwnedSnapshots(ctx, e.newClient(Regional(cfg, region)))
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	records := make([]record.Record, 0, len(snapshots))
	for _, snap := range snapshots {
		r := newItem(deref(snap.SnapshotId), snapshotName(snap))
		r.Set("volume_id", record.StringOrNull(deref(snap.VolumeId)))
		r.Set("state", record.String(string(snap.State)))
		r.Set("storage_tier", record.StringOrNull(string(snap.StorageTier)))
		r.Set("start_time", timeValue(snap.StartTime))
		record.SetSizes(&r, record.FromGiB(float64(derefInt32(snap.VolumeSize))))
		setTags(&r, KindSnapshot, ec2Tags(snap.Tags))

		records = append(records, r)
	}

	return records, nil
}

func listOwnedSnapshots(ctx context.Context, client SnapshotAPI) ([]ec2types.Snapshot, error) {
	var snapshots []ec2types.Snapshot
	paginator := ec2.NewDescribeSnapshotsPaginator(client, &ec2.DescribeSnapshotsInput{
		OwnerIds: []string{"self"},
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, page.Snapshots...)
	}
	return snapshots, nil
}

func snapshotName(snap ec2types.Snapshot) string {
	for _, tag := range snap.Tags {
		if deref(tag.Key) == "Name" {
			return deref(tag.Value)
		}
	}
	return deref(snap.Description)
}
