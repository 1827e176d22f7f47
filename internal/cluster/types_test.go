package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestHealthSampleReady verifies the readiness invariant: the cluster counts
// as ready only when the state is ok and every hash slot is assigned.
func TestHealthSampleReady(t *testing.T) {
	tests := []struct {
		name   string
		sample HealthSample
		ready  bool
	}{
		{"ok and fully slotted", HealthSample{State: StateOK, SlotsAssigned: TotalSlots}, true},
		{"ok but missing slots", HealthSample{State: StateOK, SlotsAssigned: TotalSlots - 1}, false},
		{"failed state", HealthSample{State: StateFail, SlotsAssigned: TotalSlots}, false},
		{"unknown state", HealthSample{State: StateUnknown, SlotsAssigned: 0}, false},
		{"zero value", HealthSample{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ready, tt.sample.Ready())
		})
	}
}

func TestNodeSpecAddr(t *testing.T) {
	spec := NodeSpec{Port: 6000}
	assert.Equal(t, "127.0.0.1:6000", spec.Addr())
}

func TestAddrs(t *testing.T) {
	specs := []NodeSpec{{Port: 6000}, {Port: 6001}, {Port: 6002}}
	assert.Equal(t, []string{"127.0.0.1:6000", "127.0.0.1:6001", "127.0.0.1:6002"}, Addrs(specs))
}
