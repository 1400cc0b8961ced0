package octree

import (
	"math"
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type box struct {
	name string
	b    common.BoundingBox
}

func (b *box) WorldBoundingBox() common.BoundingBox { return b.b }

func randomBox(rng *rand.Rand, name string) *box {
	c := mgl32.Vec3{rng.Float32()*180 - 90, rng.Float32()*180 - 90, rng.Float32()*180 - 90}
	h := mgl32.Vec3{rng.Float32()*4 + 0.01, rng.Float32()*4 + 0.01, rng.Float32()*4 + 0.01}
	if rng.Intn(10) == 0 {
		h = h.Mul(10)
	}
	return &box{name: name, b: common.NewBoundingBox(c.Sub(h), c.Add(h))}
}

// assertOneCellEach checks that every indexed object is stored in exactly one cell and that the side map agrees.
func assertOneCellEach(t *testing.T, o Octree, live []*box) {
	t.Helper()
	seen := map[Object]int{}
	for i := range o.CellCount() {
		for _, obj := range o.CellObjects(i) {
			seen[obj]++
			cell, ok := o.CellOf(obj)
			require.True(t, ok)
			assert.Equal(t, i, cell)
		}
	}
	assert.Len(t, seen, len(live))
	for _, b := range live {
		assert.Equal(t, 1, seen[b], "object %s", b.name)
	}
	assert.Equal(t, len(live), o.Len())
}

func TestInsertDescendsIntoOctants(t *testing.T) {
	o := NewOctree(100)

	small := &box{b: common.NewBoundingBox(mgl32.Vec3{10, 10, 10}, mgl32.Vec3{11, 11, 11})}
	o.InsertObject(small)

	cell, ok := o.CellOf(small)
	require.True(t, ok)
	assert.NotZero(t, cell)
	assert.Equal(t, 1+8*DefaultMaxDepth, o.CellCount(), "a tiny box splits one cell per level")

	// The +X+Y+Z child of the root is octant 7.
	root := o.Cell(0)
	first := o.Cell(root.ChildrenStart + 7)
	assert.Equal(t, mgl32.Vec3{50, 50, 50}, first.Center)
	assert.Equal(t, float32(50), first.HalfSize)
}

func TestLargeObjectStaysAtRoot(t *testing.T) {
	o := NewOctree(100)
	big := &box{b: common.NewBoundingBox(mgl32.Vec3{-60, -1, -1}, mgl32.Vec3{60, 1, 1})}
	o.InsertObject(big)

	cell, ok := o.CellOf(big)
	require.True(t, ok)
	assert.Equal(t, 0, cell)
	assert.Equal(t, 1, o.CellCount())
}

func TestBoundaryTieGoesToLowerOctant(t *testing.T) {
	o := NewOctree(100, WithMaxDepth(1))
	onCenter := &box{b: common.PointBox(mgl32.Vec3{0, 0, 0})}
	o.InsertObject(onCenter)

	cell, ok := o.CellOf(onCenter)
	require.True(t, ok)
	assert.Equal(t, o.Cell(0).ChildrenStart+0, cell)
}

func TestObjectOutsideRootStaysAtRoot(t *testing.T) {
	o := NewOctree(10)
	far := &box{b: common.PointBox(mgl32.Vec3{500, 0, 0})}
	o.InsertObject(far)

	cell, _ := o.CellOf(far)
	assert.Equal(t, 0, cell)

	f := common.ExtractFrustumFromMatrix(common.Perspective(math.Pi/2, 1, 0.1, 1000).Mul4(
		mgl32.LookAtV(mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}, common.Up)))
	assert.Equal(t, []Object{far}, o.IntersectFrustum(f, nil))
}

func TestEraseAndUpdate(t *testing.T) {
	o := NewOctree(100)
	b := &box{b: common.NewBoundingBox(mgl32.Vec3{10, 10, 10}, mgl32.Vec3{11, 11, 11})}
	o.InsertObject(b)
	before, _ := o.CellOf(b)

	b.b = common.NewBoundingBox(mgl32.Vec3{-11, -11, -11}, mgl32.Vec3{-10, -10, -10})
	o.UpdateObject(b)
	after, ok := o.CellOf(b)
	require.True(t, ok)
	assert.NotEqual(t, before, after)
	assertOneCellEach(t, o, []*box{b})

	assert.True(t, o.EraseObject(b))
	assert.False(t, o.EraseObject(b))
	assert.False(t, o.Contains(b))
	assert.Zero(t, o.Len())
}

func TestDoubleInsertRelocates(t *testing.T) {
	o := NewOctree(100)
	b := &box{b: common.NewBoundingBox(mgl32.Vec3{1, 1, 1}, mgl32.Vec3{2, 2, 2})}
	o.InsertObject(b)
	o.InsertObject(b)
	assertOneCellEach(t, o, []*box{b})
}

func TestRandomOperationsKeepOneCellPerObject(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	o := NewOctree(100)

	var live []*box
	for i := range 400 {
		switch op := rng.Intn(4); {
		case op <= 1 || len(live) == 0:
			b := randomBox(rng, "b"+string(rune('a'+i%26)))
			o.InsertObject(b)
			live = append(live, b)
		case op == 2:
			idx := rng.Intn(len(live))
			require.True(t, o.EraseObject(live[idx]))
			live = append(live[:idx], live[idx+1:]...)
		default:
			b := live[rng.Intn(len(live))]
			nb := randomBox(rng, b.name)
			b.b = nb.b
			o.UpdateObject(b)
		}
	}
	assertOneCellEach(t, o, live)
}

func TestIntersectFrustumMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := range 10 {
		o := NewOctree(100)
		var all []*box
		for range 150 {
			b := randomBox(rng, "")
			all = append(all, b)
			o.InsertObject(b)
		}

		eye := mgl32.Vec3{rng.Float32()*100 - 50, rng.Float32()*100 - 50, rng.Float32()*100 - 50}
		target := mgl32.Vec3{rng.Float32()*100 - 50, rng.Float32()*100 - 50, rng.Float32()*100 - 50}
		fov := rng.Float32()*1.5 + 0.3
		proj := common.Perspective(fov, 1+rng.Float32(), 0.1, 40+rng.Float32()*100)
		f := common.ExtractFrustumFromMatrix(proj.Mul4(mgl32.LookAtV(eye, target, common.Up)))

		want := map[Object]bool{}
		for _, b := range all {
			if f.IntersectBox(b.b) != common.Outside {
				want[b] = true
			}
		}

		got := o.IntersectFrustum(f, nil)
		gotSet := map[Object]bool{}
		for _, obj := range got {
			assert.False(t, gotSet[obj], "trial %d: duplicate result", trial)
			gotSet[obj] = true
		}
		assert.Equal(t, want, gotSet, "trial %d", trial)
	}
}

func TestIntersectRayMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	o := NewOctree(100)
	var all []*box
	for range 200 {
		b := randomBox(rng, "")
		all = append(all, b)
		o.InsertObject(b)
	}

	for range 20 {
		r := common.Ray{
			Origin:    mgl32.Vec3{rng.Float32()*200 - 100, rng.Float32()*200 - 100, rng.Float32()*200 - 100},
			Direction: mgl32.Vec3{rng.Float32() - 0.5, rng.Float32() - 0.5, rng.Float32() - 0.5}.Normalize(),
		}
		want := map[Object]bool{}
		for _, b := range all {
			if _, hit := r.IntersectBox(b.b); hit {
				want[b] = true
			}
		}
		got := map[Object]bool{}
		for _, obj := range o.IntersectRay(r, nil) {
			got[obj] = true
		}
		assert.Equal(t, want, got)
	}
}

func TestReservedCellsAndCenterOptions(t *testing.T) {
	o := NewOctree(10, WithCenter(mgl32.Vec3{100, 0, 0}), WithReservedCells(2048), WithMaxDepth(2))
	b := &box{b: common.PointBox(mgl32.Vec3{104, 4, 4})}
	o.InsertObject(b)

	cell, _ := o.CellOf(b)
	assert.Equal(t, 2, o.MaxDepth())
	assert.Equal(t, 17, o.CellCount())
	assert.Equal(t, mgl32.Vec3{102.5, 2.5, 2.5}, o.Cell(cell).Center)
}
