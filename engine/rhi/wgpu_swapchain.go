package rhi

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuSwapChain struct {
	mu *sync.Mutex

	device      *wgpuDevice
	surface     *wgpu.Surface
	sizeFn      func() (int, int)
	presentMode PresentMode

	format        wgpu.TextureFormat
	width, height uint32

	frameSurface *wgpu.Texture
	frameView    *wgpuTextureView
}

var _ SwapChain = &wgpuSwapChain{}

func (s *wgpuSwapChain) configure(width, height uint32) {
	capabilities := s.surface.GetCapabilities(s.device.adapter)
	s.format = capabilities.Formats[0]

	presentMode := wgpu.PresentModeFifo
	if s.presentMode == PresentModeUncapped {
		presentMode = wgpu.PresentModeImmediate
	}

	s.surface.Configure(s.device.adapter, s.device.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      s.format,
		Width:       width,
		Height:      height,
		PresentMode: presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	s.width, s.height = width, height
}

func (s *wgpuSwapChain) Size() (uint32, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *wgpuSwapChain) Format() wgpu.TextureFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

func (s *wgpuSwapChain) AcquireNextImage() (TextureView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Acquiring twice without presenting triggers "Surface image is already acquired" in wgpu-native.
	if s.frameSurface != nil {
		return nil, fmt.Errorf("previous frame not yet presented: %w", ErrSurfaceUnavailable)
	}

	surfaceTexture, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
	}

	s.frameSurface = surfaceTexture
	s.frameView = &wgpuTextureView{
		label: "Swapchain View",
		v:     view,
		tex: &wgpuTexture{
			desc: TextureDesc{
				Label:  "Swapchain",
				Width:  s.width,
				Height: s.height,
				Format: s.format,
				Usage:  wgpu.TextureUsageRenderAttachment,
			},
		},
	}
	return s.frameView, nil
}

// currentView returns the acquired image of this frame, or nil outside a frame.
func (s *wgpuSwapChain) currentView() *wgpuTextureView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameView
}

func (s *wgpuSwapChain) Present() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frameSurface == nil {
		return nil
	}

	s.surface.Present()

	if s.frameView != nil {
		s.frameView.Release()
		s.frameView = nil
	}
	s.frameSurface.Release()
	s.frameSurface = nil
	return nil
}

func (s *wgpuSwapChain) AutoResize() bool {
	w, h := s.sizeFn()
	if w <= 0 || h <= 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if uint32(w) == s.width && uint32(h) == s.height {
		return false
	}
	s.configure(uint32(w), uint32(h))
	return true
}
