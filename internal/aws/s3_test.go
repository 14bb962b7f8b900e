package aws

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/ppiankov/awsinventory/internal/record"
)

type mockS3Client struct {
	buckets     []s3types.Bucket
	locations   map[string]string
	locationErr map[string]error
	tags        map[string][]s3types.Tag
	tagErr      map[string]error
	listErr     error

	locationCalls atomic.Int32
	taggingCalls  atomic.Int32
}

func (m *mockS3Client) ListBuckets(_ context.Context, _ *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return &s3.ListBucketsOutput{Buckets: m.buckets}, nil
}

func (m *mockS3Client) GetBucketLocation(_ context.Context, input *s3.GetBucketLocationInput, _ ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	m.locationCalls.Add(1)
	name := awssdk.ToString(input.Bucket)
	if err := m.locationErr[name]; err != nil {
		return nil, err
	}
	return &s3.GetBucketLocationOutput{LocationConstraint: s3types.BucketLocationConstraint(m.locations[name])}, nil
}

func (m *mockS3Client) GetBucketTagging(_ context.Context, input *s3.GetBucketTaggingInput, _ ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error) {
	m.taggingCalls.Add(1)
	name := awssdk.ToString(input.Bucket)
	if err := m.tagErr[name]; err != nil {
		return nil, err
	}
	return &s3.GetBucketTaggingOutput{TagSet: m.tags[name]}, nil
}

// s3Metrics serves storage classes per bucket from a region-wide listing
// and bytes/objects per (bucket, storage type).
func s3Metrics(classes map[string][]string, values map[string]float64) *mockCloudWatchClient {
	dimValue := func(dims []cwtypes.Dimension, name string) string {
		for _, d := range dims {
			if awssdk.ToString(d.Name) == name {
				return awssdk.ToString(d.Value)
			}
		}
		return ""
	}
	return &mockCloudWatchClient{
		listMetricsFn: func(_ context.Context, _ *cloudwatch.ListMetricsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.ListMetricsOutput, error) {
			var metrics []cwtypes.Metric
			for bucket, cs := range classes {
				for _, c := range cs {
					metrics = append(metrics, cwtypes.Metric{Dimensions: []cwtypes.Dimension{
						{Name: awssdk.String("BucketName"), Value: awssdk.String(bucket)},
						{Name: awssdk.String("StorageType"), Value: awssdk.String(c)},
					}})
				}
			}
			return &cloudwatch.ListMetricsOutput{Metrics: metrics}, nil
		},
		getMetricDataFn: func(_ context.Context, input *cloudwatch.GetMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error) {
			var results []cwtypes.MetricDataResult
			for _, q := range input.MetricDataQueries {
				dims := q.MetricStat.Metric.Dimensions
				key := dimValue(dims, "BucketName") + "/" + dimValue(dims, "StorageType")
				if v, ok := values[key]; ok {
					results = append(results, cwtypes.MetricDataResult{Id: q.Id, Values: []float64{v}})
				}
			}
			return &cloudwatch.GetMetricDataOutput{MetricDataResults: results}, nil
		},
	}
}

func newTestS3Enumerator(client *mockS3Client, metrics *mockCloudWatchClient, regions *[]string) *S3Enumerator {
	return &S3Enumerator{
		newClient: func(cfg awssdk.Config) S3API {
			if regions != nil {
				*regions = append(*regions, cfg.Region)
			}
			return client
		},
		newMetrics: func(awssdk.Config) CloudWatchAPI { return metrics },
		window:     DefaultWindows()[KindS3],
	}
}

func TestS3Enumerator_StorageClasses(t *testing.T) {
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	client := &mockS3Client{
		buckets: []s3types.Bucket{
			{Name: awssdk.String("logs"), CreationDate: &created},
			{Name: awssdk.String("eu-data")},
		},
		locations: map[string]string{"logs": "", "eu-data": "EU"},
		tags: map[string][]s3types.Tag{
			"logs": {{Key: awssdk.String("team"), Value: awssdk.String("ops")}},
		},
		tagErr: map[string]error{
			"eu-data": &smithy.GenericAPIError{Code: "NoSuchTagSet", Message: "The TagSet does not exist"},
		},
	}
	metrics := s3Metrics(
		map[string][]string{"logs": {"StandardStorage", "GlacierStorage"}},
		map[string]float64{
			"logs/AllStorageTypes": 1200,
			"logs/StandardStorage": 1 << 30,
			"logs/GlacierStorage":  3 << 30,
		},
	)

	var regions []string
	records, err := newTestS3Enumerator(client, metrics, &regions).Enumerate(context.Background(), awssdk.Config{}, "us-east-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	logs := records[0]
	if got := logs.Text(record.FieldRegion); got != "us-east-1" {
		t.Fatalf("expected us-east-1 for empty constraint, got %q", got)
	}
	if got := logs.Float("object_count"); got != 1200 {
		t.Fatalf("expected 1200 objects, got %f", got)
	}
	if got := logs.Float("class:StandardStorage_gib"); got != 1 {
		t.Fatalf("expected 1 GiB standard, got %f", got)
	}
	if got := logs.Float("class:GlacierStorage_gib"); got != 3 {
		t.Fatalf("expected 3 GiB glacier, got %f", got)
	}
	if got := logs.Float("size_gib"); got != 4 {
		t.Fatalf("expected 4 GiB total, got %f", got)
	}
	if got := logs.Text("tag:team"); got != "ops" {
		t.Fatalf("expected tag team=ops, got %q", got)
	}

	eu := records[1]
	if got := eu.Text(record.FieldRegion); got != "eu-west-1" {
		t.Fatalf("expected eu-west-1 for EU constraint, got %q", got)
	}
	if got := eu.Float("size_gib"); got != 0 {
		t.Fatalf("expected 0 GiB without metrics, got %f", got)
	}
	for _, f := range eu.Fields() {
		if record.IsDynamic(f) {
			t.Fatalf("expected no tag fields for NoSuchTagSet, got %s", f)
		}
	}

	foundEU := false
	for _, r := range regions {
		if r == "eu-west-1" {
			foundEU = true
		}
	}
	if !foundEU {
		t.Fatalf("expected a client for the bucket's region, got %v", regions)
	}
}

func TestS3Enumerator_BatchesMetricsPerRegion(t *testing.T) {
	const n = 1200
	client := &mockS3Client{locations: map[string]string{}}
	classes := map[string][]string{}
	values := map[string]float64{}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("bucket-%04d", i)
		client.buckets = append(client.buckets, s3types.Bucket{Name: awssdk.String(name)})
		if i%2 == 1 {
			client.locations[name] = "eu-central-1"
		}
		classes[name] = []string{"StandardStorage"}
		values[name+"/StandardStorage"] = 1 << 30
		values[name+"/AllStorageTypes"] = 10
	}

	metrics := s3Metrics(classes, values)
	var listCalls, dataCalls int
	listFn, dataFn := metrics.listMetricsFn, metrics.getMetricDataFn
	metrics.listMetricsFn = func(ctx context.Context, input *cloudwatch.ListMetricsInput, opts ...func(*cloudwatch.Options)) (*cloudwatch.ListMetricsOutput, error) {
		listCalls++
		return listFn(ctx, input, opts...)
	}
	metrics.getMetricDataFn = func(ctx context.Context, input *cloudwatch.GetMetricDataInput, opts ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error) {
		dataCalls++
		if len(input.MetricDataQueries) > maxMetricDataQueries {
			t.Fatalf("batch of %d queries exceeds the limit", len(input.MetricDataQueries))
		}
		return dataFn(ctx, input, opts...)
	}

	records, err := newTestS3Enumerator(client, metrics, nil).Enumerate(context.Background(), awssdk.Config{}, "us-east-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != n {
		t.Fatalf("expected %d records, got %d", n, len(records))
	}

	// Two regions, 600 buckets each: two queries per bucket in batches of 500
	if listCalls != 2 {
		t.Fatalf("expected one storage class listing per region, got %d", listCalls)
	}
	if dataCalls != 6 {
		t.Fatalf("expected 3 metric batches per region, got %d", dataCalls)
	}
	if got := client.locationCalls.Load(); got != n {
		t.Fatalf("expected %d location calls, got %d", n, got)
	}
	if got := client.taggingCalls.Load(); got != n {
		t.Fatalf("expected %d tagging calls, got %d", n, got)
	}

	for i, r := range records {
		if got := r.Text(record.FieldResourceID); got != fmt.Sprintf("bucket-%04d", i) {
			t.Fatalf("expected listing order kept at %d, got %q", i, got)
		}
		if got := r.Float("size_gib"); got != 1 {
			t.Fatalf("expected 1 GiB for %s, got %f", r.Text(record.FieldResourceID), got)
		}
		if got := r.Float("object_count"); got != 10 {
			t.Fatalf("expected 10 objects for %s, got %f", r.Text(record.FieldResourceID), got)
		}
	}
}

func TestS3Enumerator_LocationFailureKeepsBucket(t *testing.T) {
	client := &mockS3Client{
		buckets:     []s3types.Bucket{{Name: awssdk.String("locked")}},
		locationErr: map[string]error{"locked": &smithy.GenericAPIError{Code: "AccessDenied"}},
	}

	records, err := newTestS3Enumerator(client, s3Metrics(nil, nil), nil).Enumerate(context.Background(), awssdk.Config{}, "us-east-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected bucket to be kept, got %d records", len(records))
	}
	v, ok := records[0].Get(record.FieldRegion)
	if !ok || !v.IsNull() {
		t.Fatal("expected a null region for a bucket with unknown location")
	}
}

func TestS3Enumerator_TagErrorKeepsBucket(t *testing.T) {
	client := &mockS3Client{
		buckets:   []s3types.Bucket{{Name: awssdk.String("b")}},
		locations: map[string]string{"b": "us-west-2"},
		tagErr:    map[string]error{"b": &smithy.GenericAPIError{Code: "AccessDenied"}},
	}

	records, err := newTestS3Enumerator(client, s3Metrics(nil, nil), nil).Enumerate(context.Background(), awssdk.Config{}, "us-east-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if got := records[0].Text(record.FieldRegion); got != "us-west-2" {
		t.Fatalf("expected us-west-2, got %q", got)
	}
}

func TestS3Enumerator_ListError(t *testing.T) {
	client := &mockS3Client{listErr: fmt.Errorf("AccessDenied")}
	_, err := newTestS3Enumerator(client, s3Metrics(nil, nil), nil).Enumerate(context.Background(), awssdk.Config{}, "us-east-1")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestBucketTags_NoSuchTagSetIsEmpty(t *testing.T) {
	client := &mockS3Client{tagErr: map[string]error{
		"x": fmt.Errorf("operation error S3: GetBucketTagging: %w", &smithy.GenericAPIError{Code: "NoSuchTagSet"}),
	}}
	tags, err := bucketTags(context.Background(), client, "x")
	if err != nil {
		t.Fatalf("expected no error for missing tag set, got %v", err)
	}
	if len(tags) != 0 {
		t.Fatalf("expected no tags, got %v", tags)
	}
}
