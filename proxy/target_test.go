package proxy

import (
	"testing"
	"time"
)

func TestReconnectSchedule(t *testing.T) {
	if got := reconnectSchedule(1); got != reconnectInterval {
		t.Errorf("attempt 1 = %v, want %v", got, reconnectInterval)
	}
	if got := reconnectSchedule(immediateReconnectAttempts - 1); got != reconnectInterval {
		t.Errorf("last immediate attempt = %v, want %v", got, reconnectInterval)
	}
	if got := reconnectSchedule(immediateReconnectAttempts); got != longReconnectInterval {
		t.Errorf("first slow attempt = %v, want %v", got, longReconnectInterval)
	}
	if got := reconnectSchedule(100000); got != longReconnectInterval {
		t.Errorf("deep into the slow phase = %v, want %v", got, longReconnectInterval)
	}
}

func TestReconnectScheduleTiming(t *testing.T) {
	// The immediate phase must stay short enough that a bot riding out a
	// backend restart is back within a couple of minutes.
	burst := time.Duration(immediateReconnectAttempts) * reconnectInterval
	if burst > 5*time.Minute {
		t.Errorf("immediate phase spans %v, want under 5m", burst)
	}
	if longReconnectInterval <= reconnectInterval {
		t.Errorf("slow probe %v not slower than burst interval %v", longReconnectInterval, reconnectInterval)
	}
}
