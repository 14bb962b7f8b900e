package aws

import (
	"context"
	"fmt"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/ppiankov/awsinventory/internal/record"
)

type mockEC2Client struct {
	instances    []ec2types.Reservation
	volumes      []ec2types.Volume
	instancesErr error
	volumesErr   error
	lastFilters  []ec2types.Filter
	lastRegion   string
}

func (m *mockEC2Client) DescribeInstances(_ context.Context, input *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if m.instancesErr != nil {
		return nil, m.instancesErr
	}
	m.lastFilters = input.Filters
	return &ec2.DescribeInstancesOutput{
		Reservations: m.instances,
	}, nil
}

func (m *mockEC2Client) DescribeVolumes(_ context.Context, _ *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
	if m.volumesErr != nil {
		return nil, m.volumesErr
	}
	return &ec2.DescribeVolumesOutput{Volumes: m.volumes}, nil
}

func newTestEC2Enumerator(mock *mockEC2Client) *EC2Enumerator {
	return &EC2Enumerator{newClient: func(cfg awssdk.Config) EC2API {
		mock.lastRegion = cfg.Region
		return mock
	}}
}

func attachedInstance(id string, volumeIDs ...string) ec2types.Instance {
	launched := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	inst := ec2types.Instance{
		InstanceId:      awssdk.String(id),
		InstanceType:    ec2types.InstanceTypeT3Large,
		State:           &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
		Placement:       &ec2types.Placement{AvailabilityZone: awssdk.String("us-east-1a")},
		PlatformDetails: awssdk.String("Linux/UNIX"),
		LaunchTime:      &launched,
		Tags: []ec2types.Tag{
			{Key: awssdk.String("Name"), Value: awssdk.String("web-" + id)},
			{Key: awssdk.String("cost-center"), Value: awssdk.String("42")},
		},
	}
	for i, v := range volumeIDs {
		inst.BlockDeviceMappings = append(inst.BlockDeviceMappings, ec2types.InstanceBlockDeviceMapping{
			DeviceName: awssdk.String(fmt.Sprintf("/dev/xvd%c", 'a'+i)),
			Ebs:        &ec2types.EbsInstanceBlockDevice{VolumeId: awssdk.String(v)},
		})
	}
	return inst
}

func TestEC2Enumerator_SumsAttachedVolumes(t *testing.T) {
	mock := &mockEC2Client{
		instances: []ec2types.Reservation{{Instances: []ec2types.Instance{attachedInstance("i-001", "vol-a", "vol-b")}}},
		volumes: []ec2types.Volume{
			{VolumeId: awssdk.String("vol-a"), Size: awssdk.Int32(100)},
			{VolumeId: awssdk.String("vol-b"), Size: awssdk.Int32(924)},
		},
	}

	records, err := newTestEC2Enumerator(mock).Enumerate(context.Background(), awssdk.Config{Region: "us-east-1"}, "eu-west-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.lastRegion != "eu-west-1" {
		t.Fatalf("expected client for eu-west-1, got %s", mock.lastRegion)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	r := records[0]
	if got := r.Text(record.FieldResourceID); got != "i-001" {
		t.Fatalf("expected i-001, got %s", got)
	}
	if got := r.Text(record.FieldName); got != "web-i-001" {
		t.Fatalf("expected name web-i-001, got %s", got)
	}
	if got := r.Float("volume_count"); got != 2 {
		t.Fatalf("expected 2 volumes, got %f", got)
	}
	if got := r.Float("size_gib"); got != 1024 {
		t.Fatalf("expected 1024 GiB, got %f", got)
	}
	if got := r.Float("size_tib"); got != 1 {
		t.Fatalf("expected 1 TiB, got %f", got)
	}
	if got := r.Text("tag:cost_center"); got != "42" {
		t.Fatalf("expected sanitized tag, got %q", got)
	}
	if got := r.Text("launch_time"); got != "2025-06-01T08:00:00Z" {
		t.Fatalf("unexpected launch_time %q", got)
	}
}

func TestEC2Enumerator_ExcludesTerminated(t *testing.T) {
	mock := &mockEC2Client{}
	if _, err := newTestEC2Enumerator(mock).Enumerate(context.Background(), awssdk.Config{}, "us-east-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.lastFilters) != 1 {
		t.Fatalf("expected state filter, got %v", mock.lastFilters)
	}
	for _, v := range mock.lastFilters[0].Values {
		if v == "terminated" || v == "shutting-down" {
			t.Fatalf("filter must not include %s", v)
		}
	}
}

func TestEC2Enumerator_VolumeLookupFailureKeepsInstance(t *testing.T) {
	mock := &mockEC2Client{
		instances:  []ec2types.Reservation{{Instances: []ec2types.Instance{attachedInstance("i-002", "vol-x")}}},
		volumesErr: fmt.Errorf("AccessDenied"),
	}

	records, err := newTestEC2Enumerator(mock).Enumerate(context.Background(), awssdk.Config{}, "us-east-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected instance to be kept, got %d records", len(records))
	}
	if got := records[0].Float("size_gib"); got != 0 {
		t.Fatalf("expected unknown size to count as 0, got %f", got)
	}
	if got := records[0].Float("volume_count"); got != 1 {
		t.Fatalf("expected volume_count 1, got %f", got)
	}
}

func TestEC2Enumerator_ListError(t *testing.T) {
	mock := &mockEC2Client{instancesErr: fmt.Errorf("UnauthorizedOperation")}
	_, err := newTestEC2Enumerator(mock).Enumerate(context.Background(), awssdk.Config{}, "us-east-1")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestEC2Enumerator_Empty(t *testing.T) {
	records, err := newTestEC2Enumerator(&mockEC2Client{}).Enumerate(context.Background(), awssdk.Config{}, "us-east-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
