package trace

import (
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Capture records are encoded canonically so the same record always
// produces the same bytes; decoding stays lenient so captures written
// by newer engines still open with older readers.
var captureEnc = sync.OnceValue(func() cbor.EncMode {
	em, err := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic("trace: capture encoder options: " + err.Error())
	}
	return em
})

var captureDec = sync.OnceValue(func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}.DecMode()
	if err != nil {
		panic("trace: capture decoder options: " + err.Error())
	}
	return dm
})

// Marshal encodes the record as a single item of the capture stream.
func (r Record) Marshal() ([]byte, error) {
	return captureEnc().Marshal(r)
}

// UnmarshalRecord decodes one capture stream item.
func UnmarshalRecord(data []byte) (Record, error) {
	var r Record
	if err := captureDec().Unmarshal(data, &r); err != nil {
		return Record{}, err
	}
	return r, nil
}
