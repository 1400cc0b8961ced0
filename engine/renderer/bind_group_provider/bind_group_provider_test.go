package bind_group_provider

import (
	"testing"

	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/Carmen-Shannon/foreground/engine/rhi/rhitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLayout(t *testing.T, d *rhitest.Device) rhi.BindGroupLayout {
	t.Helper()
	l, err := d.CreateBindGroupLayout(&rhi.BindGroupLayoutDesc{Label: "layout"})
	require.NoError(t, err)
	return l
}

func TestBindGroupIsBuiltLazilyAndReused(t *testing.T) {
	d := rhitest.NewDevice()
	p := NewBindGroupProvider("set", WithBindGroupLayout(newLayout(t, d)))

	s, err := d.CreateSampler(&rhi.SamplerDesc{Label: "sampler"})
	require.NoError(t, err)
	p.SetSampler(1, s)

	first, err := p.BindGroup(d)
	require.NoError(t, err)
	second, err := p.BindGroup(d)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// Restaging the same resource keeps the bind group.
	p.SetSampler(1, s)
	third, err := p.BindGroup(d)
	require.NoError(t, err)
	assert.Same(t, first, third)
}

func TestBindGroupRebuildsAfterChange(t *testing.T) {
	d := rhitest.NewDevice()
	p := NewBindGroupProvider("set", WithBindGroupLayout(newLayout(t, d)))

	a, _ := d.CreateSampler(&rhi.SamplerDesc{Label: "a"})
	b, _ := d.CreateSampler(&rhi.SamplerDesc{Label: "b"})
	p.SetSampler(0, a)
	first, err := p.BindGroup(d)
	require.NoError(t, err)

	p.SetSampler(0, b)
	second, err := p.BindGroup(d)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.True(t, first.(*rhitest.BindGroup).Released())
	assert.Equal(t, []int{0}, p.Bindings())
}

func TestSetConstantsReusesBuffer(t *testing.T) {
	d := rhitest.NewDevice()
	p := NewBindGroupProvider("consts", WithBindGroupLayout(newLayout(t, d)))

	require.NoError(t, p.SetConstants(d, 0, make([]byte, 20)))
	buf := p.Buffer(0)
	require.NotNil(t, buf)
	assert.Equal(t, uint64(32), buf.Size())

	bg, err := p.BindGroup(d)
	require.NoError(t, err)

	require.NoError(t, p.SetConstants(d, 0, []byte{1, 2, 3, 4}))
	assert.Same(t, buf, p.Buffer(0))
	assert.Equal(t, []byte{1, 2, 3, 4}, d.BufferData("consts.constants0"))

	same, err := p.BindGroup(d)
	require.NoError(t, err)
	assert.Same(t, bg, same)

	require.NoError(t, p.SetConstants(d, 0, make([]byte, 64)))
	assert.NotSame(t, buf, p.Buffer(0))
	assert.True(t, buf.(*rhitest.Buffer).Released())

	p.Release()
	assert.Nil(t, p.Buffer(0))
}

func TestBindGroupWithoutLayout(t *testing.T) {
	p := NewBindGroupProvider("orphan")
	_, err := p.BindGroup(rhitest.NewDevice())
	assert.ErrorIs(t, err, ErrNoLayout)
}

func TestApplyBufferWrites(t *testing.T) {
	d := rhitest.NewDevice()
	buf, err := d.CreateBuffer(&rhi.BufferDesc{Label: "lights", Size: 16})
	require.NoError(t, err)
	p := NewBindGroupProvider("set", WithBuffer(2, buf))

	require.NoError(t, ApplyBufferWrites(d, BufferWrite{Provider: p, Binding: 2, Data: []byte{9, 9}}))
	assert.Equal(t, []byte{9, 9}, d.BufferData("lights"))

	err = ApplyBufferWrites(d, BufferWrite{Provider: p, Binding: 3, Data: []byte{1}})
	assert.Error(t, err)
}
