package rhi

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// ParsePresentMode maps a configuration string ("vsync" or "uncapped") to a PresentMode.
// Unknown strings select VSync.
func ParsePresentMode(s string) PresentMode {
	if s == "uncapped" {
		return PresentModeUncapped
	}
	return PresentModeVSync
}

// DeviceBuilderOption is a functional option for configuring the WebGPU device and swapchain.
type DeviceBuilderOption func(*wgpuDevice)

// WithForceFallbackAdapter requests the software fallback adapter.
//
// Parameters:
//   - force: true to request the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.forceFallbackAdapter = force
	}
}

// WithPresentMode sets the initial present mode of the swapchain.
//
// Parameters:
//   - mode: VSync or Uncapped
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithPresentMode(mode PresentMode) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.presentMode = mode
	}
}

// WithDeviceLabel sets the debug label of the device.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithDeviceLabel(label string) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.label = label
	}
}
