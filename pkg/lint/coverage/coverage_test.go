package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddMergesOverlapping(t *testing.T) {
	var s Set
	s.Add(0, 10)  // [0,10)
	s.Add(10, 10) // [10,20) touches predecessor
	s.Add(25, 5)  // [25,30) disjoint

	var got []Interval
	s.FindRanges(func(iv Interval) { got = append(got, iv) })

	assert.Equal(t, []Interval{{0, 20}, {25, 30}}, got)
}

func TestAddMergesEnclosingGap(t *testing.T) {
	var s Set
	s.Add(0, 5)
	s.Add(20, 5)
	s.Add(4, 17) // [4,21) bridges both existing intervals

	var got []Interval
	s.FindRanges(func(iv Interval) { got = append(got, iv) })
	assert.Equal(t, []Interval{{0, 25}}, got)
}

func TestIsCoveredAndOverlap(t *testing.T) {
	var s Set
	s.Add(100, 50) // [100,150)

	assert.True(t, s.IsCovered(110, 10))
	assert.False(t, s.IsCovered(140, 20))
	assert.True(t, s.IsOverlap(140, 20))
	assert.False(t, s.IsOverlap(200, 10))
}

func TestFindHoles(t *testing.T) {
	var s Set
	s.Add(10, 10) // [10,20)
	s.Add(30, 10) // [30,40)

	var holes []Interval
	s.FindHoles(0, 50, func(start, length uint64) {
		holes = append(holes, Interval{Start: start, End: start + length})
	})

	assert.Equal(t, []Interval{{0, 10}, {20, 30}, {40, 50}}, holes)
}

func TestRemoveAll(t *testing.T) {
	var s Set
	s.Add(0, 100) // [0,100)

	var other Set
	other.Add(20, 10) // [20,30)
	other.Add(60, 10) // [60,70)

	s.RemoveAll(&other)

	var got []Interval
	s.FindRanges(func(iv Interval) { got = append(got, iv) })
	assert.Equal(t, []Interval{{0, 20}, {30, 60}, {70, 100}}, got)
}

func TestEmpty(t *testing.T) {
	var s Set
	assert.True(t, s.Empty())
	s.Add(1, 1)
	assert.False(t, s.Empty())
}
