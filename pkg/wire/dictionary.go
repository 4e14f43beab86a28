package wire

import "fmt"

// classNames maps class identifiers to their short names.
var classNames = map[uint16]string{
	ClassProtocol:      "PROTOCOL",
	ClassAlarm:         "ALARM",
	ClassSecurity:      "SECURITY",
	ClassMeasurement:   "MEASUREMENT",
	ClassData:          "DATA",
	ClassInformation:   "INFORMATION",
	ClassControl:       "CONTROL",
	ClassMultimedia:    "MULTIMEDIA",
	ClassAOL:           "AOL",
	ClassMeasurement64: "MEASUREMENT64",
	ClassMeasureZone:   "MEASUREZONE",
	ClassMeasurement32: "MEASUREMENT32",
	ClassSetValueZone:  "SETVALUEZONE",
	ClassWeather:       "WEATHER",
	ClassPhone:         "PHONE",
	ClassDisplay:       "DISPLAY",
	ClassIR:            "IR",
	ClassConfiguration: "CONFIGURATION",
	ClassGNSS:          "GNSS",
	ClassWireless:      "WIRELESS",
	ClassDiagnostic:    "DIAGNOSTIC",
	ClassError:         "ERROR",
	ClassLog:           "LOG",
	ClassLaboratory:    "LABORATORY",
}

// protocolTypeNames maps CLASS1.PROTOCOL type identifiers to names.
var protocolTypeNames = map[uint16]string{
	TypeProtocolGeneral:              "GENERAL",
	TypeProtocolSegCtrlHeartbeat:     "SEGCTRL_HEARTBEAT",
	TypeProtocolNewNodeOnline:        "NEW_NODE_ONLINE",
	TypeProtocolProbeAck:             "PROBE_ACK",
	TypeProtocolSetNickname:          "SET_NICKNAME",
	TypeProtocolNicknameAccepted:     "NICKNAME_ACCEPTED",
	TypeProtocolDropNickname:         "DROP_NICKNAME",
	TypeProtocolReadRegister:         "READ_REGISTER",
	TypeProtocolRWResponse:           "RW_RESPONSE",
	TypeProtocolWriteRegister:        "WRITE_REGISTER",
	TypeProtocolEnterBootLoader:      "ENTER_BOOT_LOADER",
	TypeProtocolAckBootLoader:        "ACK_BOOT_LOADER",
	TypeProtocolNackBootLoader:       "NACK_BOOT_LOADER",
	TypeProtocolStartBlock:           "START_BLOCK",
	TypeProtocolBlockData:            "BLOCK_DATA",
	TypeProtocolBlockDataAck:         "BLOCK_DATA_ACK",
	TypeProtocolBlockDataNack:        "BLOCK_DATA_NACK",
	TypeProtocolProgramBlockData:     "PROGRAM_BLOCK_DATA",
	TypeProtocolProgramBlockDataAck:  "PROGRAM_BLOCK_DATA_ACK",
	TypeProtocolProgramBlockDataNack: "PROGRAM_BLOCK_DATA_NACK",
	TypeProtocolActivateNewImage:     "ACTIVATE_NEW_IMAGE",
	TypeProtocolResetDevice:          "RESET_DEVICE",
	TypeProtocolWhoIsThere:           "WHO_IS_THERE",
	TypeProtocolWhoIsThereResponse:   "WHO_IS_THERE_RESPONSE",
	TypeProtocolExtendedPageRead:     "EXTENDED_PAGE_READ",
	TypeProtocolExtendedPageWrite:    "EXTENDED_PAGE_WRITE",
	TypeProtocolExtendedPageResponse: "EXTENDED_PAGE_RESPONSE",
	TypeProtocolActivateNewImageAck:  "ACTIVATE_NEW_IMAGE_ACK",
	TypeProtocolActivateNewImageNack: "ACTIVATE_NEW_IMAGE_NACK",
	TypeProtocolStartBlockAck:        "START_BLOCK_ACK",
	TypeProtocolStartBlockNack:       "START_BLOCK_NACK",
	TypeProtocolBlockChunkAck:        "BLOCK_CHUNK_ACK",
	TypeProtocolBlockChunkNack:       "BLOCK_CHUNK_NACK",
	TypeProtocolBootLoaderCheck:      "BOOT_LOADER_CHECK",
}

// informationTypeNames maps CLASS1.INFORMATION type identifiers to names.
var informationTypeNames = map[uint16]string{
	TypeInformationAlive:         "ALIVE",
	TypeInformationNodeHeartbeat: "NODE_HEARTBEAT",
	TypeInformationDateTime:      "DATETIME",
}

// typeNames indexes per-class type tables. Classes without a table fall
// back to numeric display.
var typeNames = map[uint16]map[uint16]string{
	ClassProtocol:    protocolTypeNames,
	ClassInformation: informationTypeNames,
}

// ClassName returns the short name of a class. ok is false for classes
// outside the dictionary.
func ClassName(class uint16) (string, bool) {
	name, ok := classNames[class]
	return name, ok
}

// TypeName returns the short name of a type within a class. ok is false
// when either the class or the type is outside the dictionary.
func TypeName(class, typ uint16) (string, bool) {
	table, ok := typeNames[class]
	if !ok {
		return "", false
	}
	name, ok := table[typ]
	return name, ok
}

// Label renders a best-effort human-readable "CLASS/TYPE" label for an
// event. Unknown classes and types degrade to their numeric form; they
// are never an error.
func Label(e Event) string {
	class, ok := ClassName(e.Class)
	if !ok {
		class = fmt.Sprintf("CLASS_%d", e.Class)
	}
	typ, ok := TypeName(e.Class, e.Type)
	if !ok {
		typ = fmt.Sprintf("TYPE_%d", e.Type)
	}
	return class + "/" + typ
}
