package bind_group_provider

import (
	"fmt"

	"github.com/Carmen-Shannon/foreground/engine/rhi"
)

// BufferWrite describes a single GPU buffer write operation targeting a specific binding
// on a BindGroupProvider at a given byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// ApplyBufferWrites uploads each write into the buffer staged at its provider's binding, in order.
//
// Parameters:
//   - device: the device whose queue performs the uploads
//   - writes: the writes to apply
//
// Returns:
//   - error: the first failure, or an error if a binding has no buffer staged
func ApplyBufferWrites(device rhi.Device, writes ...BufferWrite) error {
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			return fmt.Errorf("%s binding %d: no buffer staged", w.Provider.Label(), w.Binding)
		}
		if err := device.WriteBuffer(buf, w.Offset, w.Data); err != nil {
			return fmt.Errorf("%s binding %d: %w", w.Provider.Label(), w.Binding, err)
		}
	}
	return nil
}
