// Package metrics publishes per-cycle outcome metrics.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// DefaultNamespace is used when none is configured
const DefaultNamespace = "cfgwatch"

// Sample describes one finished polling cycle
type Sample struct {
	Device   string
	Decision string
	Duration time.Duration
	Added    int
	Removed  int
	At       time.Time
}

// Recorder receives cycle samples
type Recorder interface {
	RecordCycle(ctx context.Context, sample Sample) error
}

// Noop discards samples
type Noop struct{}

func (Noop) RecordCycle(context.Context, Sample) error { return nil }

type putMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRecorder publishes samples as CloudWatch custom metrics
// dimensioned by device.
type CloudWatchRecorder struct {
	client    putMetricDataAPI
	namespace string
}

// NewCloudWatchRecorder loads the default AWS configuration
func NewCloudWatchRecorder(ctx context.Context, namespace, region string) (*CloudWatchRecorder, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CloudWatchRecorder{client: cloudwatch.NewFromConfig(cfg), namespace: namespace}, nil
}

// RecordCycle publishes CycleCount, ChangeCount, CycleFailures,
// CycleDuration and the diff line counts.
func (r *CloudWatchRecorder) RecordCycle(ctx context.Context, sample Sample) error {
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(r.namespace),
		MetricData: datums(sample),
	})
	if err != nil {
		return fmt.Errorf("failed to put metric data: %w", err)
	}
	return nil
}

func datums(sample Sample) []types.MetricDatum {
	dims := []types.Dimension{{Name: aws.String("Device"), Value: aws.String(sample.Device)}}
	at := sample.At
	if at.IsZero() {
		at = time.Now()
	}

	datum := func(name string, value float64, unit types.StandardUnit) types.MetricDatum {
		return types.MetricDatum{
			MetricName: aws.String(name),
			Dimensions: dims,
			Timestamp:  aws.Time(at),
			Value:      aws.Float64(value),
			Unit:       unit,
		}
	}

	return []types.MetricDatum{
		datum("CycleCount", 1, types.StandardUnitCount),
		datum("ChangeCount", boolValue(sample.Decision == "changed"), types.StandardUnitCount),
		datum("CycleFailures", boolValue(sample.Decision == "failed"), types.StandardUnitCount),
		datum("CycleDuration", float64(sample.Duration.Milliseconds()), types.StandardUnitMilliseconds),
		datum("LinesAdded", float64(sample.Added), types.StandardUnitCount),
		datum("LinesRemoved", float64(sample.Removed), types.StandardUnitCount),
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
