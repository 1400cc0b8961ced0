package scene

import (
	"math"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/go-gl/mathgl/mgl32"
)

const lookEpsilon = 1e-6

func (n *sceneNode) Position() mgl32.Vec3 {
	return n.position
}

func (n *sceneNode) Rotation() mgl32.Quat {
	return n.rotation
}

func (n *sceneNode) Scale() mgl32.Vec3 {
	return n.scale
}

func (n *sceneNode) Direction() mgl32.Vec3 {
	return n.rotation.Rotate(common.Forward)
}

func (n *sceneNode) LocalTransform() mgl32.Mat4 {
	return common.ComposeTransform(n.position, n.rotation, n.scale)
}

func (n *sceneNode) WorldTransform() mgl32.Mat4 {
	if !n.worldDirty {
		return n.world
	}
	local := n.LocalTransform()
	if n.parent != nil {
		n.world = n.parent.WorldTransform().Mul4(local)
	} else {
		n.world = local
	}
	// Cleared first: the octree reads WorldBoundingBox, which calls back in here.
	n.worldDirty = false
	n.reindex = false
	if n.inOctree {
		n.scene.octree.UpdateObject(n)
	}
	return n.world
}

// parentWorld returns the parent's world transform, identity for the root.
func (n *sceneNode) parentWorld() mgl32.Mat4 {
	if n.parent == nil {
		return mgl32.Ident4()
	}
	return n.parent.WorldTransform()
}

func (n *sceneNode) parentWorldRotation() mgl32.Quat {
	if n.parent == nil {
		return mgl32.QuatIdent()
	}
	return n.parent.WorldRotation()
}

func (n *sceneNode) WorldPosition() mgl32.Vec3 {
	w := n.WorldTransform()
	return mgl32.Vec3{w[12], w[13], w[14]}
}

// WorldRotation composes the local rotations from the root down.
func (n *sceneNode) WorldRotation() mgl32.Quat {
	return n.parentWorldRotation().Mul(n.rotation).Normalize()
}

func (n *sceneNode) WorldScale() mgl32.Vec3 {
	_, _, s := common.DecomposeTransform(n.WorldTransform())
	return s
}

func (n *sceneNode) WorldDirection() mgl32.Vec3 {
	return n.WorldRotation().Rotate(common.Forward)
}

// markDirty invalidates the world transform of the node and its subtree. A dirty node never has a clean
// descendant, so the walk stops at nodes that are already dirty.
func (n *sceneNode) markDirty() {
	if n.scene != nil {
		n.scene.pending = true
	}
	n.markDirtyRec()
}

func (n *sceneNode) markDirtyRec() {
	if n.worldDirty {
		return
	}
	n.worldDirty = true
	for _, c := range n.children {
		c.markDirtyRec()
	}
}

func (n *sceneNode) SetPosition(p mgl32.Vec3) {
	n.position = p
	n.markDirty()
}

func (n *sceneNode) SetRotation(q mgl32.Quat) {
	n.rotation = q.Normalize()
	n.markDirty()
}

func (n *sceneNode) SetDirection(dir mgl32.Vec3) {
	if q, ok := lookRotation(dir, common.Up); ok {
		n.SetRotation(q)
	}
}

func (n *sceneNode) SetScale(s mgl32.Vec3) {
	n.scale = s
	n.markDirty()
}

func (n *sceneNode) SetUniformScale(s float32) {
	n.SetScale(mgl32.Vec3{s, s, s})
}

func (n *sceneNode) SetTransform(position mgl32.Vec3, rotation mgl32.Quat, scale mgl32.Vec3) {
	n.position = position
	n.rotation = rotation.Normalize()
	n.scale = scale
	n.markDirty()
}

func (n *sceneNode) SetTransformMatrix(m mgl32.Mat4) {
	n.SetTransform(common.DecomposeTransform(m))
}

func (n *sceneNode) SetWorldPosition(p mgl32.Vec3) {
	n.SetPosition(common.TransformPoint(n.parentWorld().Inv(), p))
}

func (n *sceneNode) SetWorldRotation(q mgl32.Quat) {
	n.SetRotation(n.parentWorldRotation().Inverse().Mul(q))
}

func (n *sceneNode) SetWorldDirection(dir mgl32.Vec3) {
	if q, ok := lookRotation(dir, common.Up); ok {
		n.SetWorldRotation(q)
	}
}

func (n *sceneNode) SetWorldScale(s mgl32.Vec3) {
	ps := mgl32.Vec3{1, 1, 1}
	if n.parent != nil {
		ps = n.parent.WorldScale()
	}
	local := n.scale
	for i := range 3 {
		if ps[i] != 0 {
			local[i] = s[i] / ps[i]
		}
	}
	n.SetScale(local)
}

func (n *sceneNode) SetWorldTransform(m mgl32.Mat4) {
	n.SetTransformMatrix(n.parentWorld().Inv().Mul4(m))
}

// Translate moves the node. Local deltas follow the node's rotation, world deltas are mapped through the
// inverse of the parent's world transform.
func (n *sceneNode) Translate(delta mgl32.Vec3, space common.TransformSpace) {
	switch space {
	case common.TransformSpaceLocal:
		delta = n.rotation.Rotate(delta)
	case common.TransformSpaceWorld:
		delta = common.TransformDirection(n.parentWorld().Inv(), delta)
	}
	n.SetPosition(n.position.Add(delta))
}

// Rotate applies delta. Local: rot*delta. Parent: delta*rot. World: rot * W⁻¹ * delta * W with W the world rotation.
func (n *sceneNode) Rotate(delta mgl32.Quat, space common.TransformSpace) {
	switch space {
	case common.TransformSpaceLocal:
		n.SetRotation(n.rotation.Mul(delta))
	case common.TransformSpaceParent:
		n.SetRotation(delta.Mul(n.rotation))
	default:
		w := n.WorldRotation()
		n.SetRotation(n.rotation.Mul(w.Inverse()).Mul(delta).Mul(w))
	}
}

func (n *sceneNode) RotateAround(point, axis mgl32.Vec3, angle float32, space common.TransformSpace) {
	// Bring the axis into parent space, where position and rotation live.
	switch space {
	case common.TransformSpaceLocal:
		local := n.LocalTransform()
		point = common.TransformPoint(local, point)
		axis = n.rotation.Rotate(axis)
	case common.TransformSpaceWorld:
		inv := n.parentWorld().Inv()
		point = common.TransformPoint(inv, point)
		axis = common.TransformDirection(inv, axis)
	}
	if axis.Len() < lookEpsilon {
		return
	}
	q := mgl32.QuatRotate(angle, axis.Normalize())
	n.SetTransform(q.Rotate(n.position.Sub(point)).Add(point), q.Mul(n.rotation), n.scale)
}

func (n *sceneNode) Pitch(angle float32, space common.TransformSpace) {
	n.Rotate(mgl32.QuatRotate(angle, common.Right), space)
}

func (n *sceneNode) Yaw(angle float32, space common.TransformSpace) {
	n.Rotate(mgl32.QuatRotate(angle, common.Up), space)
}

func (n *sceneNode) Roll(angle float32, space common.TransformSpace) {
	n.Rotate(mgl32.QuatRotate(angle, mgl32.Vec3{0, 0, 1}), space)
}

func (n *sceneNode) LookAt(target, up mgl32.Vec3, space common.TransformSpace) bool {
	switch space {
	case common.TransformSpaceLocal:
		target = common.TransformPoint(n.LocalTransform(), target)
		up = n.rotation.Rotate(up)
	case common.TransformSpaceWorld:
		inv := n.parentWorld().Inv()
		target = common.TransformPoint(inv, target)
		up = common.TransformDirection(inv, up)
	}
	q, ok := lookRotation(target.Sub(n.position), up)
	if !ok {
		return false
	}
	n.SetRotation(q)
	return true
}

func (n *sceneNode) ScaleBy(factor mgl32.Vec3) {
	n.SetScale(mgl32.Vec3{n.scale[0] * factor[0], n.scale[1] * factor[1], n.scale[2] * factor[2]})
}

// lookRotation returns the rotation taking -Z to dir and +Y as close to up as possible.
func lookRotation(dir, up mgl32.Vec3) (mgl32.Quat, bool) {
	if dir.Len() < lookEpsilon || up.Len() < lookEpsilon {
		return mgl32.Quat{}, false
	}
	f := dir.Normalize()
	r := f.Cross(up.Normalize())
	if float64(r.Len()) < math.Sqrt(lookEpsilon) {
		return mgl32.Quat{}, false
	}
	r = r.Normalize()
	u := r.Cross(f)
	basis := mgl32.Mat3FromCols(r, u, f.Mul(-1))
	return mgl32.Mat4ToQuat(basis.Mat4()).Normalize(), true
}
