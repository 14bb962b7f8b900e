package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog/log"

	"github.com/ppiankov/awsinventory/internal/record"
)

// EC2API is the minimal interface for EC2 instance operations.
type EC2API interface {
	DescribeInstances(ctx context.Context, input *ec2.DescribeInstancesInput, opts ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeVolumes(ctx context.Context, input *ec2.DescribeVolumesInput, opts ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
}

// EC2Enumerator lists EC2 instances sized by their attached EBS volumes.
type EC2Enumerator struct {
	newClient func(awssdk.Config) EC2API
}

// Kind returns the resource kind.
func (e *EC2Enumerator) Kind() string { return KindEC2 }

// Global reports false: instances are regional.
func (e *EC2Enumerator) Global() bool { return false }

// Enumerate lists every instance that is not terminated.
func (e *EC2Enumerator) Enumerate(ctx context.Context, cfg awssdk.Config, region string) ([]record.Record, error) {
	client := e.newClient(Regional(cfg, region))

	instances, err := listInstances(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("list EC2 instances: %w", err)
	}
	if len(instances) == 0 {
		return nil, nil
	}

	sizes, err := attachedVolumeSizes(ctx, client)
	if err != nil {
		// Instances are still reported, with unknown volume sizes counted as zero
		log.Warn().Err(err).Str("region", region).Msg("Failed to describe attached EBS volumes")
		sizes = map[string]int32{}
	}

	records := make([]record.Record, 0, len(instances))
	for _, inst := range instances {
		id := deref(inst.InstanceId)
		r := newItem(id, instanceName(inst))
		r.Set("instance_type", record.String(string(inst.InstanceType)))
		state := ""
		if inst.State != nil {
			state = string(inst.State.Name)
		}
		r.Set("state", record.StringOrNull(state))
		az := ""
		if inst.Placement != nil {
			az = deref(inst.Placement.AvailabilityZone)
		}
		r.Set("availability_zone", record.StringOrNull(az))
		r.Set("platform", record.StringOrNull(deref(inst.PlatformDetails)))
		r.Set("launch_time", timeValue(inst.LaunchTime))

		var volumes int
		var totalGiB int64
		for _, m := range inst.BlockDeviceMappings {
			if m.Ebs == nil || m.Ebs.VolumeId == nil {
				continue
			}
			volumes++
			size, ok := sizes[*m.Ebs.VolumeId]
			if !ok {
				log.Debug().Str("instance", id).Str("volume", *m.Ebs.VolumeId).Msg("Attached volume size unknown")
				continue
			}
			totalGiB += int64(size)
		}
		r.Set("volume_count", record.Int(int64(volumes)))
		record.SetSizes(&r, record.FromGiB(float64(totalGiB)))
		setTags(&r, KindEC2, ec2Tags(inst.Tags))

		records = append(records, r)
	}

	return records, nil
}

func listInstances(ctx context.Context, client EC2API) ([]ec2types.Instance, error) {
	var instances []ec2types.Instance
	paginator := ec2.NewDescribeInstancesPaginator(client, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{
				Name:   awssdk.String("instance-state-name"),
				Values: []string{"pending", "running", "stopping", "stopped"},
			},
		},
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, res := range page.Reservations {
			instances = append(instances, res.Instances...)
		}
	}
	return instances, nil
}

// attachedVolumeSizes maps the ID of every attached volume in the region to
// its size in GiB.
func attachedVolumeSizes(ctx context.Context, client EC2API) (map[string]int32, error) {
	sizes := make(map[string]int32)
	paginator := ec2.NewDescribeVolumesPaginator(client, &ec2.DescribeVolumesInput{
		Filters: []ec2types.Filter{
			{
				Name:   awssdk.String("attachment.status"),
				Values: []string{"attached"},
			},
		},
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, vol := range page.Volumes {
			if vol.VolumeId != nil {
				sizes[*vol.VolumeId] = derefInt32(vol.Size)
			}
		}
	}
	return sizes, nil
}

func instanceName(inst ec2types.Instance) string {
	for _, tag := range inst.Tags {
		if deref(tag.Key) == "Name" {
			return deref(tag.Value)
		}
	}
	return ""
}

func ec2Tags(tags []ec2types.Tag) map[string]string {
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
