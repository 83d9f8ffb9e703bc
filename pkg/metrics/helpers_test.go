package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// sample gathers reg and returns the series of family name whose labels
// include every pair in want.
func sample(t *testing.T, reg prometheus.Gatherer, name string, want map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, series := range family.GetMetric() {
			if hasLabels(series, want) {
				return series
			}
		}
		t.Fatalf("%s has no series labelled %v", name, want)
	}
	t.Fatalf("metric %s not registered", name)
	return nil
}

func hasLabels(series *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(series.GetLabel()))
	for _, pair := range series.GetLabel() {
		got[pair.GetName()] = pair.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}
