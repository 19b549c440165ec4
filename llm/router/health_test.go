package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testEndpoints() []Endpoint {
	return []Endpoint{
		{Name: "fast-1", Tier: TierFast, BaseURL: "http://a/v1", Model: "m", Weight: 1, Priority: 0, TimeoutSeconds: 15},
		{Name: "fast-2", Tier: TierFast, BaseURL: "http://b/v1", Model: "m", Weight: 1, Priority: 0, TimeoutSeconds: 15},
	}
}

func TestRegistry_MarkSuccessResetsFailures(t *testing.T) {
	reg := NewRegistry(testEndpoints())

	reg.MarkFailure("fast-1")
	reg.MarkFailure("fast-1")
	reg.MarkSuccess("fast-1")

	snap, ok := reg.Snapshot("fast-1")
	require.True(t, ok)
	assert.True(t, snap.Healthy)
	assert.Equal(t, 0, snap.ConsecutiveFailures)
}

func TestRegistry_ThreeConsecutiveFailuresMarksUnhealthy(t *testing.T) {
	reg := NewRegistry(testEndpoints())

	reg.MarkFailure("fast-1")
	snap, _ := reg.Snapshot("fast-1")
	assert.True(t, snap.Healthy, "one failure should not mark unhealthy")

	reg.MarkFailure("fast-1")
	snap, _ = reg.Snapshot("fast-1")
	assert.True(t, snap.Healthy, "two failures should not mark unhealthy")

	reg.MarkFailure("fast-1")
	snap, _ = reg.Snapshot("fast-1")
	assert.False(t, snap.Healthy, "three consecutive failures must mark unhealthy")
	assert.Equal(t, 3, snap.ConsecutiveFailures)
}

func TestRegistry_NotFoundIsAnomalyNotPanic(t *testing.T) {
	reg := NewRegistry(testEndpoints())

	assert.False(t, reg.MarkSuccess("does-not-exist"))
	assert.False(t, reg.MarkFailure("does-not-exist"))
	_, ok := reg.Snapshot("does-not-exist")
	assert.False(t, ok)
}

func TestRegistry_MarkSuccessIsIdempotent(t *testing.T) {
	reg := NewRegistry(testEndpoints())

	reg.MarkSuccess("fast-1")
	first, _ := reg.Snapshot("fast-1")
	reg.MarkSuccess("fast-1")
	second, _ := reg.Snapshot("fast-1")

	assert.Equal(t, first.Healthy, second.Healthy)
	assert.Equal(t, first.ConsecutiveFailures, second.ConsecutiveFailures)
}

func TestRegistry_FailedProbeThenSuccessRecoversHealthy(t *testing.T) {
	reg := NewRegistry(testEndpoints())

	reg.MarkFailure("fast-1")
	reg.MarkFailure("fast-1")
	reg.MarkFailure("fast-1")
	snap, _ := reg.Snapshot("fast-1")
	require.False(t, snap.Healthy)

	reg.MarkSuccess("fast-1")
	snap, _ = reg.Snapshot("fast-1")
	assert.True(t, snap.Healthy)
}

// TestRegistry_HealthInvariant_Property exercises the universal invariant:
// after any sequence of mark_success/mark_failure calls, healthy is false
// iff the last three writes were failures with no intervening success.
func TestRegistry_HealthInvariant_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reg := NewRegistry(testEndpoints())
		ops := rapid.SliceOfN(rapid.Bool(), 0, 30).Draw(t, "ops") // true = success, false = failure

		lastThreeAreFailures := func(tail []bool) bool {
			if len(tail) < 3 {
				return false
			}
			for _, success := range tail[len(tail)-3:] {
				if success {
					return false
				}
			}
			return true
		}

		var history []bool
		for _, success := range ops {
			if success {
				reg.MarkSuccess("fast-1")
			} else {
				reg.MarkFailure("fast-1")
			}
			history = append(history, success)
		}

		snap, _ := reg.Snapshot("fast-1")
		want := lastThreeAreFailures(history)
		assert.Equal(t, !want, snap.Healthy)
	})
}
