package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
)

// Metric names emitted by the order workflows.
const (
	OrdersPlaced    = "OrdersPlaced"
	OrdersCancelled = "OrdersCancelled"
	StockRejected   = "StockRejected"
	UnitsReserved   = "UnitsReserved"
	UnitsRestored   = "UnitsRestored"
)

// Recorder publishes counters to CloudWatch under one namespace.
type Recorder struct {
	client    aws.CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewRecorder returns a Recorder. A nil client or empty namespace yields a
// Recorder that drops every datum.
func NewRecorder(client aws.CloudWatchAPI, namespace string) *Recorder {
	return &Recorder{client: client, namespace: namespace, nowFunc: time.Now}
}

// Count records value under name with the given dimensions.
func (r *Recorder) Count(ctx context.Context, name string, value float64, dims map[string]string) error {
	if r == nil || r.client == nil || r.namespace == "" {
		return nil
	}
	now := r.nowFunc().UTC()
	datum := cwtypes.MetricDatum{
		MetricName: &name,
		Value:      &value,
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  &now,
		Dimensions: dimensions(dims),
	}
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &r.namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		return fmt.Errorf("put metric %s: %w", name, err)
	}
	return nil
}

func dimensions(dims map[string]string) []cwtypes.Dimension {
	keys := make([]string, 0, len(dims))
	for k, v := range dims {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]cwtypes.Dimension, 0, len(keys))
	for _, k := range keys {
		name, value := k, dims[k]
		out = append(out, cwtypes.Dimension{Name: &name, Value: &value})
	}
	return out
}
