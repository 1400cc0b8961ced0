package pipelang

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/Carmen-Shannon/foreground/engine/rhi/rhitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trivialVS = "@vertex\nfn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }\n"

// slowCompiler blocks every compile until release is closed. When entered is set, each compile sends on it
// before blocking.
type slowCompiler struct {
	countingCompiler
	release chan struct{}
	entered chan struct{}
}

func (s *slowCompiler) Compile(ctx context.Context, device rhi.Device, env CompileEnvironment) (rhi.ShaderModule, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	<-s.release
	return s.countingCompiler.Compile(ctx, device, env)
}

func TestConcurrentMissesCompileOnce(t *testing.T) {
	sc := &slowCompiler{release: make(chan struct{})}
	cache := NewShaderCache(rhitest.NewDevice(), WithCompiler(sc))

	var wg sync.WaitGroup
	modules := make([]rhi.ShaderModule, 8)
	for i := range modules {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := cache.RetrieveOrCompileShader(context.Background(), "k_VS", CompileEnvironment{Stage: StageVertex, Source: trivialVS})
			assert.NoError(t, err)
			modules[i] = m
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(sc.release)
	wg.Wait()

	assert.LessOrEqual(t, len(sc.Calls()), 2)
	assert.Equal(t, 1, cache.Len())
	for _, m := range modules {
		assert.Same(t, cache.RetrieveShader("k_VS"), m)
	}
	_, ok := cache.LastCompiled("k_VS")
	assert.True(t, ok)
}

func TestFailedCompileIsNotCached(t *testing.T) {
	d := rhitest.NewDevice()
	d.FailShader = func(string) bool { return true }
	cache := NewShaderCache(d)

	_, err := cache.RetrieveOrCompileShader(context.Background(), "k_PS", CompileEnvironment{Stage: StageFragment, Source: "x"})
	assert.ErrorIs(t, err, rhitest.ErrInjected)
	assert.Equal(t, 0, cache.Len())
}

func TestInvalidateByPrefix(t *testing.T) {
	cache := NewShaderCache(rhitest.NewDevice())
	a := &rhitest.ShaderModule{}
	b := &rhitest.ShaderModule{}
	cache.InsertShader("_A_B_VS", a)
	cache.InsertShader("_C_VS", b)

	assert.Equal(t, 1, cache.Invalidate("_A"))
	assert.True(t, a.Released())
	assert.False(t, b.Released())
	assert.Nil(t, cache.RetrieveShader("_A_B_VS"))
	assert.Same(t, b, cache.RetrieveShader("_C_VS"))
}

func TestInsertReplacesAndReleases(t *testing.T) {
	cache := NewShaderCache(nil)
	a := &rhitest.ShaderModule{}
	b := &rhitest.ShaderModule{}
	cache.InsertShader("k", a)
	cache.InsertShader("k", b)
	assert.True(t, a.Released())
	assert.Same(t, b, cache.RetrieveShader("k"))
}

func TestSetDeviceEmptiesCache(t *testing.T) {
	d := rhitest.NewDevice()
	cache := NewShaderCache(d)
	_, err := cache.RetrieveOrCompileShader(context.Background(), "k_VS", CompileEnvironment{Stage: StageVertex, Source: trivialVS})
	require.NoError(t, err)

	other := rhitest.NewDevice()
	cache.SetDevice(other)
	assert.Equal(t, 0, cache.Len())
	assert.Same(t, other, cache.Device())

	_, err = cache.RetrieveOrCompileShader(context.Background(), "k_VS", CompileEnvironment{Stage: StageVertex, Source: trivialVS})
	require.NoError(t, err)
	assert.Equal(t, 1, other.ShaderModules())
}

func TestCompileOnPool(t *testing.T) {
	pool := worker.NewDynamicWorkerPool(2, 16, time.Second)
	defer pool.Stop()

	d := rhitest.NewDevice()
	cache := NewShaderCache(d, WithCompilePool(pool))
	m, err := cache.RetrieveOrCompileShader(context.Background(), "k_VS", CompileEnvironment{Stage: StageVertex, Source: trivialVS})
	require.NoError(t, err)
	assert.Equal(t, "k_VS", m.Label())
	assert.Equal(t, 1, d.ShaderModules())
}

func TestInvalidateDuringCompile(t *testing.T) {
	sc := &slowCompiler{release: make(chan struct{}), entered: make(chan struct{}, 2)}
	cache := NewShaderCache(rhitest.NewDevice(), WithCompiler(sc))
	env := CompileEnvironment{Stage: StageVertex, Source: trivialVS}

	stale := make(chan rhi.ShaderModule, 1)
	go func() {
		m, err := cache.RetrieveOrCompileShader(context.Background(), "k_VS", env)
		assert.NoError(t, err)
		stale <- m
	}()
	<-sc.entered
	cache.Invalidate("")

	fresh := make(chan rhi.ShaderModule, 1)
	go func() {
		m, err := cache.RetrieveOrCompileShader(context.Background(), "k_VS", env)
		assert.NoError(t, err)
		fresh <- m
	}()
	<-sc.entered
	close(sc.release)

	oldModule, newModule := <-stale, <-fresh
	assert.NotSame(t, oldModule, newModule)
	assert.Len(t, sc.Calls(), 2)
	assert.Same(t, newModule, cache.RetrieveShader("k_VS"))
	assert.Equal(t, 1, cache.Len())
}
