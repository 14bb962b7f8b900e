package aws

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/awsinventory/internal/record"
)

const (
	s3Namespace        = "AWS/S3"
	s3SizeMetric       = "BucketSizeBytes"
	s3ObjectsMetric    = "NumberOfObjects"
	s3StorageTypeDim   = "StorageType"
	s3BucketDim        = "BucketName"
	s3AllStorageTypes  = "AllStorageTypes"
	noSuchTagSetCode   = "NoSuchTagSet"
	legacyEURegionCode = "EU"

	// bucketLookupConcurrency bounds concurrent per-bucket location and tag calls.
	bucketLookupConcurrency = 10
)

// S3API is the minimal interface for S3 bucket operations.
type S3API interface {
	ListBuckets(ctx context.Context, input *s3.ListBucketsInput, opts ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketLocation(ctx context.Context, input *s3.GetBucketLocationInput, opts ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	GetBucketTagging(ctx context.Context, input *s3.GetBucketTaggingInput, opts ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error)
}

// S3Enumerator lists the account's buckets, sized per storage class from
// the daily CloudWatch storage metrics.
type S3Enumerator struct {
	newClient  func(awssdk.Config) S3API
	newMetrics func(awssdk.Config) CloudWatchAPI
	window     Window
}

type bucketInfo struct {
	name    string
	created *time.Time
	region  string
	located bool
	tags    map[string]string
}

type bucketStorage struct {
	objects float64
	classes []string
	bytes   []float64
}

// Kind returns the resource kind.
func (e *S3Enumerator) Kind() string { return KindS3 }

// Global reports true: bucket listing is account-wide.
func (e *S3Enumerator) Global() bool { return true }

// Enumerate lists every bucket. region is only the endpoint used for the
// listing; each record carries its bucket's own region.
func (e *S3Enumerator) Enumerate(ctx context.Context, cfg awssdk.Config, region string) ([]record.Record, error) {
	home := e.newClient(Regional(cfg, region))

	out, err := home.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list S3 buckets: %w", err)
	}

	buckets := make([]bucketInfo, len(out.Buckets))
	for i, b := range out.Buckets {
		buckets[i] = bucketInfo{name: deref(b.Name), created: b.CreationDate}
	}

	forEachBucket(buckets, func(b *bucketInfo) {
		loc, err := bucketLocation(ctx, home, b.name)
		if err != nil {
			// Unknown location: the bucket is kept, without region or metrics
			log.Warn().Err(err).Str("bucket", b.name).Msg("Failed to get bucket location")
			return
		}
		b.region, b.located = loc, true
	})

	clients := map[string]S3API{region: home}
	byRegion := make(map[string][]string)
	for _, b := range buckets {
		if !b.located {
			continue
		}
		if _, ok := clients[b.region]; !ok {
			clients[b.region] = e.newClient(Regional(cfg, b.region))
		}
		byRegion[b.region] = append(byRegion[b.region], b.name)
	}

	forEachBucket(buckets, func(b *bucketInfo) {
		if !b.located {
			return
		}
		tags, err := bucketTags(ctx, clients[b.region], b.name)
		if err != nil {
			log.Warn().Err(err).Str("bucket", b.name).Msg("Failed to get bucket tags")
		}
		b.tags = tags
	})

	storage := make(map[string]bucketStorage, len(buckets))
	for _, r := range slices.Sorted(maps.Keys(byRegion)) {
		fetcher := NewMetricsFetcher(e.newMetrics(Regional(cfg, r)))
		maps.Copy(storage, e.regionStorage(ctx, fetcher, r, byRegion[r]))
	}

	records := make([]record.Record, 0, len(buckets))
	for _, b := range buckets {
		r := newItem(b.name, b.name)
		if !b.located {
			r.Set(record.FieldRegion, record.Null())
			r.Set("creation_date", timeValue(b.created))
			records = append(records, r)
			continue
		}
		r.Set(record.FieldRegion, record.String(b.region))
		r.Set("creation_date", timeValue(b.created))

		st := storage[b.name]
		r.Set("object_count", record.Number(st.objects))
		var total float64
		for i, class := range st.classes {
			total += st.bytes[i]
			record.SetClassSizes(&r, class, record.FromBytes(st.bytes[i]))
		}
		record.SetSizes(&r, record.FromBytes(total))
		setTags(&r, KindS3, b.tags)

		records = append(records, r)
	}

	return records, nil
}

// forEachBucket runs fn for every bucket with bounded concurrency. Each
// call owns its bucket.
func forEachBucket(buckets []bucketInfo, fn func(*bucketInfo)) {
	var g errgroup.Group
	g.SetLimit(bucketLookupConcurrency)
	for i := range buckets {
		b := &buckets[i]
		g.Go(func() error {
			fn(b)
			return nil
		})
	}
	_ = g.Wait()
}

// regionStorage reads the object count and per-class sizes of every bucket
// in one region: one listing for the storage classes, then one batched
// fetch. Metrics that cannot be read leave the buckets at zero.
func (e *S3Enumerator) regionStorage(ctx context.Context, fetcher *MetricsFetcher, region string, buckets []string) map[string]bucketStorage {
	classes, err := fetcher.DimensionIndex(ctx, s3Namespace, s3SizeMetric, s3BucketDim, s3StorageTypeDim)
	if err != nil {
		log.Warn().Err(err).Str("region", region).Msg("Failed to list bucket storage classes")
		classes = nil
	}

	type span struct{ objects, first int }
	spans := make([]span, len(buckets))
	var queries []MetricQuery
	for i, bucket := range buckets {
		spans[i] = span{objects: len(queries), first: len(queries) + 1}
		queries = append(queries, MetricQuery{
			Namespace: s3Namespace,
			Name:      s3ObjectsMetric,
			Dimensions: []Dimension{
				{Name: s3BucketDim, Value: bucket},
				{Name: s3StorageTypeDim, Value: s3AllStorageTypes},
			},
		})
		for _, class := range classes[bucket] {
			queries = append(queries, MetricQuery{
				Namespace: s3Namespace,
				Name:      s3SizeMetric,
				Dimensions: []Dimension{
					{Name: s3BucketDim, Value: bucket},
					{Name: s3StorageTypeDim, Value: class},
				},
			})
		}
	}

	values, err := fetcher.FetchMany(ctx, queries, e.window)
	if err != nil {
		log.Warn().Err(err).Str("region", region).Int("buckets", len(buckets)).Msg("Failed to fetch bucket storage metrics")
		values = map[int]float64{}
	}

	out := make(map[string]bucketStorage, len(buckets))
	for i, bucket := range buckets {
		st := bucketStorage{objects: values[spans[i].objects], classes: classes[bucket]}
		st.bytes = make([]float64, len(st.classes))
		for j := range st.classes {
			st.bytes[j] = values[spans[i].first+j]
		}
		out[bucket] = st
	}
	return out
}

// bucketLocation resolves a bucket's region. An empty constraint means
// us-east-1 and the legacy EU constraint means eu-west-1.
func bucketLocation(ctx context.Context, client S3API, bucket string) (string, error) {
	out, err := client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: awssdk.String(bucket)})
	if err != nil {
		return "", err
	}
	switch out.LocationConstraint {
	case "":
		return DefaultRegion, nil
	case s3types.BucketLocationConstraint(legacyEURegionCode):
		return "eu-west-1", nil
	default:
		return string(out.LocationConstraint), nil
	}
}

// bucketTags returns the bucket's tags. A bucket without a tag set has no
// tags, which is not an error.
func bucketTags(ctx context.Context, client S3API, bucket string) (map[string]string, error) {
	out, err := client.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: awssdk.String(bucket)})
	if err != nil {
		if HasCode(err, noSuchTagSetCode) {
			return nil, nil
		}
		return nil, err
	}

	tags := make(map[string]string, len(out.TagSet))
	for _, t := range out.TagSet {
		if t.Key != nil {
			tags[*t.Key] = deref(t.Value)
		}
	}
	return tags, nil
}
