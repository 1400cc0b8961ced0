package pipelang

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/foreground/engine/rhi/rhitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileWorkerSource(t *testing.T) {
	w := NewCompileWorker(CompileEnvironment{
		Stage:        StageVertex,
		Source:       "let x = SCALE * RADIUS;",
		Definitions:  map[string]string{"RADIUS": "2.0", "COUNT": "4u"},
		Replacements: map[string]string{"SCALE": "0.5"},
	})
	src, err := w.Source()
	require.NoError(t, err)
	assert.Equal(t, "const COUNT = 4u;\nconst RADIUS = 2.0;\nlet x = 0.5 * RADIUS;", src)
}

func TestCompileWorkerReadsSourcePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k_VS.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(trivialVS), 0o644))

	d := rhitest.NewDevice()
	m, err := NewCompileWorker(CompileEnvironment{Stage: StageVertex, Key: "k_VS", SourcePath: path}).
		Compile(context.Background(), d, DeviceCompiler{})
	require.NoError(t, err)
	assert.Equal(t, trivialVS, m.(*rhitest.ShaderModule).Code)
}

func TestCompileWorkerRejectsUnknownStage(t *testing.T) {
	_, err := NewCompileWorker(CompileEnvironment{Stage: "geometry", Source: "x"}).
		Compile(context.Background(), rhitest.NewDevice(), DeviceCompiler{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDeviceCompilerNeedsDevice(t *testing.T) {
	_, err := DeviceCompiler{}.Compile(context.Background(), nil, CompileEnvironment{Key: "k"})
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestCompileAsync(t *testing.T) {
	pool := worker.NewDynamicWorkerPool(2, 16, time.Second)
	defer pool.Stop()

	d := rhitest.NewDevice()
	results := []<-chan CompileResult{
		NewCompileWorker(CompileEnvironment{Stage: StageVertex, Key: "a_VS", Source: trivialVS}).CompileAsync(pool, d, DeviceCompiler{}),
		NewCompileWorker(CompileEnvironment{Stage: "hull", Key: "b_VS", Source: trivialVS}).CompileAsync(pool, d, DeviceCompiler{}),
	}

	select {
	case res := <-results[0]:
		require.NoError(t, res.Err)
		assert.Equal(t, "a_VS", res.Key)
		assert.NotNil(t, res.Module)
	case <-time.After(5 * time.Second):
		t.Fatal("compile did not finish")
	}
	select {
	case res := <-results[1]:
		assert.ErrorIs(t, res.Err, ErrUnsupported)
	case <-time.After(5 * time.Second):
		t.Fatal("compile did not finish")
	}
}

type failingValidator struct{}

func (failingValidator) Validate(context.Context, CompileEnvironment) error {
	return assert.AnError
}

func TestValidatorRunsBeforeDevice(t *testing.T) {
	d := rhitest.NewDevice()
	_, err := DeviceCompiler{Validator: failingValidator{}}.Compile(context.Background(), d, CompileEnvironment{Key: "k", Source: trivialVS})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, d.ShaderModules())
}
