package aws

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/ppiankov/awsinventory/internal/record"
)

// Enumerator lists one resource kind in one region of one account.
type Enumerator interface {
	Kind() string
	// Global reports whether the kind is account-wide and enumerated once
	// per account instead of once per region.
	Global() bool
	Enumerate(ctx context.Context, cfg awssdk.Config, region string) ([]record.Record, error)
}

// Enumerators builds the enumerators for the given kinds, in kind order.
func Enumerators(kinds []string, opts Options) ([]Enumerator, error) {
	newMetrics := func(cfg awssdk.Config) CloudWatchAPI { return cloudwatch.NewFromConfig(cfg) }

	out := make([]Enumerator, 0, len(kinds))
	for _, kind := range kinds {
		switch kind {
		case KindEC2:
			out = append(out, &EC2Enumerator{newClient: func(cfg awssdk.Config) EC2API { return ec2.NewFromConfig(cfg) }})
		case KindEBS:
			out = append(out, &EBSEnumerator{newClient: func(cfg awssdk.Config) EBSAPI { return ec2.NewFromConfig(cfg) }})
		case KindSnapshot:
			out = append(out, &SnapshotEnumerator{newClient: func(cfg awssdk.Config) SnapshotAPI { return ec2.NewFromConfig(cfg) }})
		case KindS3:
			out = append(out, &S3Enumerator{
				newClient:  func(cfg awssdk.Config) S3API { return s3.NewFromConfig(cfg) },
				newMetrics: newMetrics,
				window:     opts.WindowFor(KindS3),
			})
		case KindRDS:
			out = append(out, &RDSEnumerator{
				newClient:  func(cfg awssdk.Config) RDSAPI { return rds.NewFromConfig(cfg) },
				newMetrics: newMetrics,
				window:     opts.WindowFor(KindRDS),
			})
		case KindDynamoDB:
			out = append(out, &DynamoDBEnumerator{newClient: func(cfg awssdk.Config) DynamoDBAPI { return dynamodb.NewFromConfig(cfg) }})
		case KindEKS:
			out = append(out, &EKSEnumerator{newClient: func(cfg awssdk.Config) EKSAPI { return eks.NewFromConfig(cfg) }})
		case KindRedshift:
			out = append(out, &RedshiftEnumerator{newClient: func(cfg awssdk.Config) RedshiftAPI { return redshift.NewFromConfig(cfg) }})
		default:
			return nil, fmt.Errorf("no enumerator for resource type %q", kind)
		}
	}
	return out, nil
}

// newItem starts a record with the identity fields every kind carries.
func newItem(id, name string) record.Record {
	r := record.New()
	r.Set(record.FieldResourceID, record.String(id))
	r.Set(record.FieldName, record.StringOrNull(name))
	return r
}

// setTags writes tag fields and reports keys dropped by sanitization.
func setTags(r *record.Record, kind string, tags map[string]string) {
	if len(tags) == 0 {
		return
	}
	for _, key := range record.SetTags(r, tags) {
		log.Debug().
			Str("type", kind).
			Str("resource", r.Text(record.FieldResourceID)).
			Str("tag", key).
			Msg("Tag key collides with another after sanitizing, skipped")
	}
}

func timeValue(t *time.Time) record.Value {
	if t == nil || t.IsZero() {
		return record.Null()
	}
	return record.String(t.UTC().Format(time.RFC3339))
}

func int32Value(v *int32) record.Value {
	if v == nil {
		return record.Null()
	}
	return record.Int(int64(*v))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt32(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
