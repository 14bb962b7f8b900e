package aws

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Resource kinds inventoried by awsinventory.
const (
	KindEC2      = "ec2"
	KindEBS      = "ebs"
	KindSnapshot = "snapshot"
	KindS3       = "s3"
	KindRDS      = "rds"
	KindDynamoDB = "dynamodb"
	KindEKS      = "eks"
	KindRedshift = "redshift"
)

// AllKinds lists every kind in report order.
var AllKinds = []string{
	KindEC2,
	KindEBS,
	KindSnapshot,
	KindS3,
	KindRDS,
	KindDynamoDB,
	KindEKS,
	KindRedshift,
}

// ParseKinds validates a kind filter. An empty filter selects every kind.
// The result follows AllKinds order.
func ParseKinds(filter []string) ([]string, error) {
	if len(filter) == 0 {
		return slices.Clone(AllKinds), nil
	}

	want := make(map[string]bool, len(filter))
	for _, k := range filter {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if !slices.Contains(AllKinds, k) {
			return nil, fmt.Errorf("unknown resource type %q (valid: %s)", k, strings.Join(AllKinds, ", "))
		}
		want[k] = true
	}

	kinds := make([]string, 0, len(want))
	for _, k := range AllKinds {
		if want[k] {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("empty resource type filter")
	}
	return kinds, nil
}

// Window selects how a metric is read: the CloudWatch statistic, the
// datapoint period and how far back to look.
type Window struct {
	Stat     string
	Period   time.Duration
	Lookback time.Duration
}

// Options configures the enumerators.
type Options struct {
	// Metrics overrides the default metric window per kind.
	Metrics map[string]Window
}

// DefaultWindows returns the metric windows used when none is configured.
func DefaultWindows() map[string]Window {
	return map[string]Window{
		// S3 storage metrics are published once a day.
		KindS3:  {Stat: "Average", Period: 24 * time.Hour, Lookback: 48 * time.Hour},
		KindRDS: {Stat: "Minimum", Period: time.Hour, Lookback: 24 * time.Hour},
	}
}

// WindowFor returns the configured window for a kind, falling back to the
// default and filling unset parts from it.
func (o Options) WindowFor(kind string) Window {
	w := DefaultWindows()[kind]
	if o.Metrics == nil {
		return w
	}
	c, ok := o.Metrics[kind]
	if !ok {
		return w
	}
	if c.Stat != "" {
		w.Stat = c.Stat
	}
	if c.Period > 0 {
		w.Period = c.Period
	}
	if c.Lookback > 0 {
		w.Lookback = c.Lookback
	}
	return w
}
