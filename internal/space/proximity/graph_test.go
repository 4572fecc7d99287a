package proximity

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jaehyeon-kim/agora/internal/space/session"
)

func idleAt(id string, x, y int) session.View {
	return session.View{
		ID:  id,
		Pos: session.Position{X: x, Y: y, Motion: session.MotionIdle},
	}
}

func TestBuildGroupsAdjacentPair(t *testing.T) {
	views := []session.View{
		idleAt("a", 0, 0),
		idleAt("b", 32, 32),
	}
	groups := BuildGroups(views, 32, 2)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a", "b"}, groups[0].Members)
	assert.Equal(t, "a:b", groups[0].Signature)
}

func TestBuildGroupsSingletonIsNotAGroup(t *testing.T) {
	views := []session.View{
		idleAt("a", 0, 0),
		idleAt("b", 3200, 3200),
	}
	assert.Empty(t, BuildGroups(views, 32, 2))
}

func TestBuildGroupsWalkingExcluded(t *testing.T) {
	views := []session.View{
		idleAt("a", 0, 0),
		{ID: "b", Pos: session.Position{X: 32, Y: 0, Motion: session.MotionWalking}},
	}
	assert.Empty(t, BuildGroups(views, 32, 2))
}

func TestBuildGroupsSittingExcluded(t *testing.T) {
	views := []session.View{
		idleAt("a", 0, 0),
		{ID: "b", Pos: session.Position{X: 32, Y: 0, Motion: session.MotionSitting}},
	}
	assert.Empty(t, BuildGroups(views, 32, 2))
}

func TestBuildGroupsChebyshevDiagonal(t *testing.T) {
	// Diagonal tile offset (2,2) is distance 2 under Chebyshev, so it groups
	// at radius 2 even though the Euclidean distance exceeds 2 tiles.
	views := []session.View{
		idleAt("a", 0, 0),
		idleAt("b", 64, 64),
	}
	groups := BuildGroups(views, 32, 2)
	require.Len(t, groups, 1)

	// (3,0) is distance 3: out of range.
	views[1] = idleAt("b", 96, 0)
	assert.Empty(t, BuildGroups(views, 32, 2))
}

func TestBuildGroupsTileQuantization(t *testing.T) {
	// Positions inside the same tile quantize to the same tile coordinate.
	views := []session.View{
		idleAt("a", 0, 0),
		idleAt("b", 31, 31),
	}
	groups := BuildGroups(views, 32, 0)
	require.Len(t, groups, 1)

	// One pixel over the tile boundary is a different tile.
	views[1] = idleAt("b", 32, 0)
	assert.Empty(t, BuildGroups(views, 32, 0))
}

func TestBuildGroupsTransitiveChain(t *testing.T) {
	// a-b and b-c are adjacent but a-c is not; all three form one component.
	views := []session.View{
		idleAt("a", 0, 0),
		idleAt("b", 64, 0),
		idleAt("c", 128, 0),
	}
	groups := BuildGroups(views, 32, 2)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a", "b", "c"}, groups[0].Members)
}

func TestBuildGroupsMultipleComponents(t *testing.T) {
	views := []session.View{
		idleAt("d", 1000, 1000),
		idleAt("c", 1032, 1000),
		idleAt("b", 32, 0),
		idleAt("a", 0, 0),
	}
	groups := BuildGroups(views, 32, 2)
	require.Len(t, groups, 2)
	assert.Equal(t, "a:b", groups[0].Signature)
	assert.Equal(t, "c:d", groups[1].Signature)
}

func TestBuildGroupsDeterministicOrder(t *testing.T) {
	views := []session.View{
		idleAt("c", 0, 0),
		idleAt("a", 32, 0),
		idleAt("b", 0, 32),
	}
	first := BuildGroups(views, 32, 2)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BuildGroups(views, 32, 2))
	}
}

// Property-based tests

func TestPropertyGroupsPartitionMembers(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "n")
		views := make([]session.View, n)
		for i := range views {
			views[i] = idleAt(
				fmt.Sprintf("s%02d", i),
				rapid.IntRange(0, 500).Draw(t, "x"),
				rapid.IntRange(0, 500).Draw(t, "y"),
			)
		}

		groups := BuildGroups(views, 32, 2)

		seen := make(map[string]bool)
		for _, g := range groups {
			if len(g.Members) < 2 {
				t.Fatalf("group %q has fewer than 2 members", g.Signature)
			}
			if !sort.StringsAreSorted(g.Members) {
				t.Fatalf("group %q members not sorted", g.Signature)
			}
			if g.Signature != strings.Join(g.Members, ":") {
				t.Fatalf("signature %q does not match members %v", g.Signature, g.Members)
			}
			for _, id := range g.Members {
				if seen[id] {
					t.Fatalf("session %q appears in more than one group", id)
				}
				seen[id] = true
			}
		}
	})
}

func TestPropertyGroupingIsOrderInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 12).Draw(t, "n")
		views := make([]session.View, n)
		for i := range views {
			views[i] = idleAt(
				fmt.Sprintf("s%02d", i),
				rapid.IntRange(0, 300).Draw(t, "x"),
				rapid.IntRange(0, 300).Draw(t, "y"),
			)
		}

		expected := BuildGroups(views, 32, 2)

		perm := rapid.Permutation(views).Draw(t, "perm")
		assert.Equal(t, expected, BuildGroups(perm, 32, 2))
	})
}

func TestPropertyAdjacencyIsSymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := session.Position{
			X: rapid.IntRange(0, 1000).Draw(t, "ax"),
			Y: rapid.IntRange(0, 1000).Draw(t, "ay"),
		}
		b := session.Position{
			X: rapid.IntRange(0, 1000).Draw(t, "bx"),
			Y: rapid.IntRange(0, 1000).Draw(t, "by"),
		}
		radius := rapid.IntRange(0, 5).Draw(t, "radius")
		if withinRadius(a, b, 32, radius) != withinRadius(b, a, 32, radius) {
			t.Fatal("withinRadius is not symmetric")
		}
	})
}
