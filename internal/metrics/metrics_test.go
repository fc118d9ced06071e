package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func valueOf(t *testing.T, data []types.MetricDatum, name string) float64 {
	t.Helper()
	for _, d := range data {
		if aws.ToString(d.MetricName) == name {
			return aws.ToFloat64(d.Value)
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestCloudWatchRecorder_Changed(t *testing.T) {
	api := &fakeCloudWatch{}
	r := &CloudWatchRecorder{client: api, namespace: "net"}

	err := r.RecordCycle(context.Background(), Sample{
		Device:   "r1",
		Decision: "changed",
		Duration: 1500 * time.Millisecond,
		Added:    2,
		Removed:  1,
		At:       time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, api.inputs, 1)

	in := api.inputs[0]
	assert.Equal(t, "net", aws.ToString(in.Namespace))
	assert.Equal(t, 1.0, valueOf(t, in.MetricData, "ChangeCount"))
	assert.Equal(t, 0.0, valueOf(t, in.MetricData, "CycleFailures"))
	assert.Equal(t, 1500.0, valueOf(t, in.MetricData, "CycleDuration"))
	assert.Equal(t, 2.0, valueOf(t, in.MetricData, "LinesAdded"))
	assert.Equal(t, "r1", aws.ToString(in.MetricData[0].Dimensions[0].Value))
}

func TestCloudWatchRecorder_Error(t *testing.T) {
	r := &CloudWatchRecorder{client: &fakeCloudWatch{err: fmt.Errorf("throttled")}, namespace: "net"}
	err := r.RecordCycle(context.Background(), Sample{Device: "r1", Decision: "failed"})
	assert.ErrorContains(t, err, "throttled")
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.RecordCycle(context.Background(), Sample{}))
}
