package aws

import (
	"context"
	"fmt"
	"slices"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/rs/zerolog/log"
)

const (
	// maxMetricDataQueries is the maximum number of metric queries per GetMetricData call.
	maxMetricDataQueries = 500
	// minPeriodSeconds is the smallest period CloudWatch accepts for standard metrics.
	minPeriodSeconds = 60
)

// CloudWatchAPI is the minimal interface for CloudWatch operations needed by the metrics fetcher.
type CloudWatchAPI interface {
	GetMetricData(ctx context.Context, input *cloudwatch.GetMetricDataInput, opts ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error)
	ListMetrics(ctx context.Context, input *cloudwatch.ListMetricsInput, opts ...func(*cloudwatch.Options)) (*cloudwatch.ListMetricsOutput, error)
}

// Dimension is one CloudWatch metric dimension.
type Dimension struct {
	Name  string
	Value string
}

// MetricQuery identifies a single metric series.
type MetricQuery struct {
	Namespace  string
	Name       string
	Dimensions []Dimension
}

// MetricsFetcher retrieves CloudWatch metrics in batches.
type MetricsFetcher struct {
	client CloudWatchAPI
	now    func() time.Time
}

// NewMetricsFetcher creates a fetcher using the given CloudWatch client.
func NewMetricsFetcher(client CloudWatchAPI) *MetricsFetcher {
	return &MetricsFetcher{client: client, now: time.Now}
}

// Fetch reads one metric over the window and reduces its datapoints to a
// single value. ok is false when the metric has no datapoints.
func (f *MetricsFetcher) Fetch(ctx context.Context, q MetricQuery, w Window) (value float64, ok bool, err error) {
	values, err := f.FetchMany(ctx, []MetricQuery{q}, w)
	if err != nil {
		return 0, false, err
	}
	value, ok = values[0]
	return value, ok, nil
}

// FetchMany reads several metrics with the same window. The result maps a
// query's index to its value; queries without datapoints are absent.
func (f *MetricsFetcher) FetchMany(ctx context.Context, queries []MetricQuery, w Window) (map[int]float64, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	end := f.now().UTC()
	start := end.Add(-w.Lookback)
	period := int32(w.Period / time.Second)
	if period < minPeriodSeconds {
		period = minPeriodSeconds
	}

	datapoints := make(map[int][]float64, len(queries))
	batches := batchQueries(len(queries), maxMetricDataQueries)

	for batchIdx, b := range batches {
		log.Debug().
			Int("batch", batchIdx+1).
			Int("total_batches", len(batches)).
			Str("metric", queries[b[0]].Name).
			Int("count", b[1]-b[0]).
			Msg("Fetching CloudWatch metrics")

		input := &cloudwatch.GetMetricDataInput{
			MetricDataQueries: buildQueries(queries, b[0], b[1], period, w.Stat),
			StartTime:         awssdk.Time(start),
			EndTime:           awssdk.Time(end),
		}

		for {
			out, err := f.client.GetMetricData(ctx, input)
			if err != nil {
				return nil, fmt.Errorf("get metric data (%s/%s): %w", queries[b[0]].Namespace, queries[b[0]].Name, err)
			}

			for _, result := range out.MetricDataResults {
				if result.Id == nil || len(result.Values) == 0 {
					continue
				}
				// Parse the index from the query ID to map back to the query
				var idx int
				if _, err := fmt.Sscanf(*result.Id, "m%d", &idx); err != nil || idx < b[0] || idx >= b[1] {
					continue
				}
				datapoints[idx] = append(datapoints[idx], result.Values...)
			}

			if out.NextToken == nil {
				break
			}
			input.NextToken = out.NextToken
		}
	}

	results := make(map[int]float64, len(datapoints))
	for idx, values := range datapoints {
		results[idx] = reduce(w.Stat, values)
	}
	return results, nil
}

// DimensionIndex lists every series of a metric and groups the values of
// one dimension by the value of another, each group sorted ascending. A
// single paginated listing covers the whole region.
func (f *MetricsFetcher) DimensionIndex(ctx context.Context, namespace, metric, key, dimension string) (map[string][]string, error) {
	paginator := cloudwatch.NewListMetricsPaginator(f.client, &cloudwatch.ListMetricsInput{
		Namespace:  awssdk.String(namespace),
		MetricName: awssdk.String(metric),
	})

	index := make(map[string][]string)
	seen := make(map[[2]string]bool)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list metrics (%s/%s): %w", namespace, metric, err)
		}
		for _, m := range page.Metrics {
			var k, v string
			for _, d := range m.Dimensions {
				switch awssdk.ToString(d.Name) {
				case key:
					k = awssdk.ToString(d.Value)
				case dimension:
					v = awssdk.ToString(d.Value)
				}
			}
			if k == "" || v == "" || seen[[2]string{k, v}] {
				continue
			}
			seen[[2]string{k, v}] = true
			index[k] = append(index[k], v)
		}
	}
	for _, values := range index {
		slices.Sort(values)
	}
	return index, nil
}

func buildQueries(queries []MetricQuery, from, to int, period int32, stat string) []cwtypes.MetricDataQuery {
	out := make([]cwtypes.MetricDataQuery, 0, to-from)
	for i := from; i < to; i++ {
		q := queries[i]
		dims := make([]cwtypes.Dimension, 0, len(q.Dimensions))
		for _, d := range q.Dimensions {
			dims = append(dims, cwtypes.Dimension{
				Name:  awssdk.String(d.Name),
				Value: awssdk.String(d.Value),
			})
		}
		out = append(out, cwtypes.MetricDataQuery{
			Id: awssdk.String(fmt.Sprintf("m%d", i)),
			MetricStat: &cwtypes.MetricStat{
				Metric: &cwtypes.Metric{
					Namespace:  awssdk.String(q.Namespace),
					MetricName: awssdk.String(q.Name),
					Dimensions: dims,
				},
				Period: awssdk.Int32(period),
				Stat:   awssdk.String(stat),
			},
		})
	}
	return out
}

// reduce collapses the datapoints of one series into a single value
// consistent with the statistic. Datapoints arrive newest first.
func reduce(stat string, values []float64) float64 {
	switch stat {
	case "Average":
		var total float64
		for _, v := range values {
			total += v
		}
		return total / float64(len(values))
	case "Sum", "SampleCount":
		var total float64
		for _, v := range values {
			total += v
		}
		return total
	case "Minimum":
		return slices.Min(values)
	case "Maximum":
		return slices.Max(values)
	default:
		return values[0]
	}
}

// batchQueries splits n queries into [from, to) ranges of at most batchSize.
func batchQueries(n, batchSize int) [][2]int {
	if batchSize <= 0 {
		batchSize = maxMetricDataQueries
	}

	var batches [][2]int
	for i := 0; i < n; i += batchSize {
		end := i + batchSize
		if end > n {
			end = n
		}
		batches = append(batches, [2]int{i, end})
	}
	return batches
}
