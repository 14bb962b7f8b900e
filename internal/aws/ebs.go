package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/ppiankov/awsinventory/internal/record"
)

// EBSAPI is the minimal interface for EBS volume operations.
type EBSAPI interface {
	DescribeVolumes(ctx context.Context, input *ec2.DescribeVolumesInput, opts ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
}

// EBSEnumerator lists EBS volumes, attached or not.
type EBSEnumerator struct {
	newClient func(awssdk.Config) EBSAPI
}

// Kind returns the resource kind.
func (e *EBSEnumerator) Kind() string { return KindEBS }

// Global reports false: volumes are regional.
func (e *EBSEnumerator) Global() bool { return false }

// Enumerate lists every volume in the region except those being deleted.
func (e *EBSEnumerator) Enumerate(ctx context.Context, cfg awssdk.Config, region string) ([]record.Record, error) {
	volumes, err := listVolumes(ctx, e.newClient(Regional(cfg, region)))
	if err != nil {
		return nil, fmt.Errorf("list EBS volumes: %w", err)
	}

	records := make([]record.Record, 0, len(volumes))
	for _, vol := range volumes {
		if vol.State == ec2types.VolumeStateDeleting || vol.State == ec2types.VolumeStateDeleted {
			continue
		}

		r := newItem(deref(vol.VolumeId), volumeName(vol))
		r.Set("volume_type", record.String(string(vol.VolumeType)))
		r.Set("state", record.String(string(vol.State)))
		r.Set("availability_zone", record.StringOrNull(deref(vol.AvailabilityZone)))
		attached := ""
		if len(vol.Attachments) > 0 {
			attached = deref(vol.Attachments[0].InstanceId)
		}
		r.Set("attached_instance", record.StringOrNull(attached))
		encrypted := false
		if vol.Encrypted != nil {
			encrypted = *vol.Encrypted
		}
		r.Set("encrypted", record.Bool(encrypted))
		r.Set("iops", int32Value(vol.Iops))
		r.Set("create_time", timeValue(vol.CreateTime))
		record.SetSizes(&r, record.FromGiB(float64(derefInt32(vol.Size))))
		setTags(&r, KindEBS, ec2Tags(vol.Tags))

		records = append(records, r)
	}

	return records, nil
}

func listVolumes(ctx context.Context, client EBSAPI) ([]ec2types.Volume, error) {
	var volumes []ec2types.Volume
	paginator := ec2.NewDescribeVolumesPaginator(client, &ec2.DescribeVolumesInput{})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		volumes = append(volumes, page.Volumes...)
	}
	return volumes, nil
}

func volumeName(vol ec2types.Volume) string {
	for _, tag := range vol.Tags {
		if deref(tag.Key) == "Name" {
			return deref(tag.Value)
		}
	}
	return ""
}
