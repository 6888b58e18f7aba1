package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestCount_SendsDatum(t *testing.T) {
	mock := &mockCloudWatch{}
	r := NewRecorder(mock, "Storefront")

	if err := r.Count(context.Background(), OrdersPlaced, 1, map[string]string{"Status": "pending", "Empty": ""}); err != nil {
		t.Fatalf("count: %v", err)
	}
	if len(mock.inputs) != 1 {
		t.Fatalf("expected 1 call, got %d", len(mock.inputs))
	}
	in := mock.inputs[0]
	if *in.Namespace != "Storefront" {
		t.Fatalf("unexpected namespace %s", *in.Namespace)
	}
	d := in.MetricData[0]
	if *d.MetricName != OrdersPlaced || *d.Value != 1 {
		t.Fatalf("unexpected datum: %+v", d)
	}
	if len(d.Dimensions) != 1 || *d.Dimensions[0].Name != "Status" {
		t.Fatalf("empty dimensions should be dropped: %+v", d.Dimensions)
	}
}

func TestCount_DisabledRecorder(t *testing.T) {
	var nilRec *Recorder
	if err := nilRec.Count(context.Background(), OrdersPlaced, 1, nil); err != nil {
		t.Fatalf("nil recorder: %v", err)
	}
	mock := &mockCloudWatch{}
	if err := NewRecorder(mock, "").Count(context.Background(), OrdersPlaced, 1, nil); err != nil {
		t.Fatalf("no namespace: %v", err)
	}
	if len(mock.inputs) != 0 {
		t.Fatalf("expected no calls without a namespace")
	}
}

func TestCount_WrapsError(t *testing.T) {
	boom := errors.New("throttled")
	r := NewRecorder(&mockCloudWatch{err: boom}, "Storefront")
	if err := r.Count(context.Background(), StockRejected, 1, nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
