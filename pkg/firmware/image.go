package firmware

import (
	"errors"
	"fmt"
	"os"

	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

// ErrEmptyImage is returned for images with no content.
var ErrEmptyImage = errors.New("firmware: empty image")

// Image is a firmware payload to be programmed into a node.
type Image struct {
	data []byte
}

// NewImage wraps raw image bytes.
func NewImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	im := &Image{data: make([]byte, len(data))}
	copy(im.data, data)
	return im, nil
}

// LoadImage reads an image file from disk.
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("firmware: read image: %w", err)
	}
	return NewImage(data)
}

// Size returns the unpadded image size in bytes.
func (im *Image) Size() int {
	return len(im.data)
}

// Padded returns the image filled with 0xFF up to a whole number of
// blocks. Erased flash reads as 0xFF, so the padding is a no-op on the
// device.
func (im *Image) Padded(blockSize uint32) []byte {
	n := len(im.data)
	rem := n % int(blockSize)
	if rem != 0 {
		n += int(blockSize) - rem
	}
	out := make([]byte, n)
	copy(out, im.data)
	for i := len(im.data); i < n; i++ {
		out[i] = 0xFF
	}
	return out
}

// CRC returns the checksum of the padded image, as presented to the
// node at activation.
func (im *Image) CRC(blockSize uint32) uint16 {
	return wire.Crc16(im.Padded(blockSize))
}
