package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys.
const (
	ProfilingLabelOperation  = "operation"
	ProfilingLabelDeviceType = "device_type"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
)

// MaxLabelValueLength bounds label values attached to profiles.
const MaxLabelValueLength = 128

// highCardinalityLabels are dropped from profiles.
var highCardinalityLabels = map[string]bool{
	"tenant_id":  true,
	"user_id":    true,
	"device_id":  true,
	"request_id": true,
	"trace_id":   true,
}

// WithProfilingLabels runs fn with Pyroscope labels attached to its samples.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := labelPairs(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// AdmissionLabels returns profiling labels for an admission check.
func AdmissionLabels(deviceType string) map[string]string {
	return map[string]string{
		ProfilingLabelOperation:  "device_admission",
		ProfilingLabelDeviceType: deviceType,
	}
}

func labelPairs(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k, v := range labels {
		if k == "" || v == "" || highCardinalityLabels[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		v := strings.TrimSpace(labels[k])
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		pairs = append(pairs, k, v)
	}
	return pairs
}
