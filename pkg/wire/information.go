package wire

import "time"

// EncodeDateTime builds the payload of an INFORMATION/DATETIME event.
// The date and time pack into 38 bits: year (12), month (4), day (5),
// hour (5), minute (6), second (6), carried big-endian in the last five
// payload bytes after index, zone and subzone.
func EncodeDateTime(t time.Time, zone, subzone uint8) []byte {
	packed := uint64(t.Year())<<26 |
		uint64(t.Month())<<22 |
		uint64(t.Day())<<17 |
		uint64(t.Hour())<<12 |
		uint64(t.Minute())<<6 |
		uint64(t.Second())

	return []byte{
		0, zone, subzone,
		byte(packed >> 32),
		byte(packed >> 24),
		byte(packed >> 16),
		byte(packed >> 8),
		byte(packed),
	}
}

// DecodeDateTime parses an INFORMATION/DATETIME payload back into a
// time value in the local location. ok is false for short payloads.
func DecodeDateTime(data []byte) (time.Time, bool) {
	if len(data) < 8 {
		return time.Time{}, false
	}
	packed := uint64(data[3])<<32 |
		uint64(data[4])<<24 |
		uint64(data[5])<<16 |
		uint64(data[6])<<8 |
		uint64(data[7])

	year := int(packed >> 26 & 0xFFF)
	month := time.Month(packed >> 22 & 0xF)
	day := int(packed >> 17 & 0x1F)
	hour := int(packed >> 12 & 0x1F)
	minute := int(packed >> 6 & 0x3F)
	second := int(packed & 0x3F)

	return time.Date(year, month, day, hour, minute, second, 0, time.Local), true
}
