package firmware

import (
	"bytes"
	"errors"
	"testing"

	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

func TestNewImageRejectsEmpty(t *testing.T) {
	if _, err := NewImage(nil); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("got %v, want ErrEmptyImage", err)
	}
}

func TestPaddedFillsLastBlock(t *testing.T) {
	im, err := NewImage([]byte{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("NewImage failed: %v", err)
	}

	got := im.Padded(8)
	want := []byte{1, 2, 3, 4, 5, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPaddedKeepsExactMultiple(t *testing.T) {
	data := bytes.Repeat([]byte{7}, 16)
	im, err := NewImage(data)
	if err != nil {
		t.Fatalf("NewImage failed: %v", err)
	}

	if got := im.Padded(8); !bytes.Equal(got, data) {
		t.Errorf("got %v, want unchanged image", got)
	}
}

func TestCRCCoversPadding(t *testing.T) {
	im, err := NewImage([]byte{1, 2, 3})
	if err != nil {
		t.Fatalf("NewImage failed: %v", err)
	}

	if got, want := im.CRC(8), wire.Crc16(im.Padded(8)); got != want {
		t.Errorf("got 0x%04X, want 0x%04X", got, want)
	}
}
