package observability

import (
	"context"
	"fmt"
	"time"

	"graphitti-backend/domain/scoring"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metrics pushes gauges to CloudWatch. A nil client turns every call into a
// no-op, which is how local development runs.
type Metrics struct {
	namespace string
	client    *cloudwatch.Client
}

// NewMetrics creates a new metrics instance
func NewMetrics(namespace string, client *cloudwatch.Client) *Metrics {
	return &Metrics{
		namespace: namespace,
		client:    client,
	}
}

// EmitHealth publishes the five health factors plus the overall score as
// gauges in [0, 1]
func (m *Metrics) EmitHealth(ctx context.Context, report scoring.HealthReport) error {
	if m.client == nil {
		return nil
	}

	now := time.Now()
	gauges := []struct {
		name  string
		value float64
	}{
		{"HealthStability", report.Factors.Stability},
		{"HealthQuality", report.Factors.Quality},
		{"HealthActivity", report.Factors.Activity},
		{"HealthInverseErrorRate", report.Factors.InverseErrorRate},
		{"HealthDensity", report.Factors.Density},
		{"HealthOverall", report.OverallScore},
	}

	metricData := make([]types.MetricDatum, 0, len(gauges))
	for _, g := range gauges {
		metricData = append(metricData, types.MetricDatum{
			MetricName: aws.String(g.name),
			Dimensions: []types.Dimension{
				{
					Name:  aws.String("Grade"),
					Value: aws.String(report.Grade),
				},
			},
			Value:     aws.Float64(g.value),
			Unit:      types.StandardUnitNone,
			Timestamp: aws.Time(now),
		})
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: metricData,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		return fmt.Errorf("failed to send health metrics: %w", err)
	}
	return nil
}

// RecordLatency records latency for any operation
func (m *Metrics) RecordLatency(ctx context.Context, operation string, latency time.Duration) {
	if m.client == nil {
		return
	}

	metricData := []types.MetricDatum{
		{
			MetricName: aws.String("OperationLatency"),
			Dimensions: []types.Dimension{
				{
					Name:  aws.String("Operation"),
					Value: aws.String(operation),
				},
			},
			Value:     aws.Float64(float64(latency.Milliseconds())),
			Unit:      types.StandardUnitMilliseconds,
			Timestamp: aws.Time(time.Now()),
		},
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: metricData,
	}
	m.client.PutMetricData(ctx, input)
}
