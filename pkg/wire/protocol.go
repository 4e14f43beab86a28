package wire

// Level I class identifiers.
const (
	ClassProtocol      uint16 = 0
	ClassAlarm         uint16 = 1
	ClassSecurity      uint16 = 2
	ClassMeasurement   uint16 = 10
	ClassData          uint16 = 15
	ClassInformation   uint16 = 20
	ClassControl       uint16 = 30
	ClassMultimedia    uint16 = 40
	ClassAOL           uint16 = 50
	ClassMeasurement64 uint16 = 60
	ClassMeasureZone   uint16 = 65
	ClassMeasurement32 uint16 = 70
	ClassSetValueZone  uint16 = 85
	ClassWeather       uint16 = 90
	ClassPhone         uint16 = 100
	ClassDisplay       uint16 = 102
	ClassIR            uint16 = 110
	ClassConfiguration uint16 = 120
	ClassGNSS          uint16 = 206
	ClassWireless      uint16 = 212
	ClassDiagnostic    uint16 = 506
	ClassError         uint16 = 508
	ClassLog           uint16 = 509
	ClassLaboratory    uint16 = 510
)

// CLASS1.PROTOCOL event types. These drive node discovery, nickname
// management, register access and the boot loader.
const (
	TypeProtocolGeneral              uint16 = 0
	TypeProtocolSegCtrlHeartbeat     uint16 = 1
	TypeProtocolNewNodeOnline        uint16 = 2
	TypeProtocolProbeAck             uint16 = 3
	TypeProtocolSetNickname          uint16 = 6
	TypeProtocolNicknameAccepted     uint16 = 7
	TypeProtocolDropNickname         uint16 = 8
	TypeProtocolReadRegister         uint16 = 9
	TypeProtocolRWResponse           uint16 = 10
	TypeProtocolWriteRegister        uint16 = 11
	TypeProtocolEnterBootLoader      uint16 = 12
	TypeProtocolAckBootLoader        uint16 = 13
	TypeProtocolNackBootLoader       uint16 = 14
	TypeProtocolStartBlock           uint16 = 15
	TypeProtocolBlockData            uint16 = 16
	TypeProtocolBlockDataAck         uint16 = 17
	TypeProtocolBlockDataNack        uint16 = 18
	TypeProtocolProgramBlockData     uint16 = 19
	TypeProtocolProgramBlockDataAck  uint16 = 20
	TypeProtocolProgramBlockDataNack uint16 = 21
	TypeProtocolActivateNewImage     uint16 = 22
	TypeProtocolResetDevice          uint16 = 23
	TypeProtocolWhoIsThere           uint16 = 31
	TypeProtocolWhoIsThereResponse   uint16 = 32
	TypeProtocolExtendedPageRead     uint16 = 37
	TypeProtocolExtendedPageWrite    uint16 = 38
	TypeProtocolExtendedPageResponse uint16 = 39
	TypeProtocolActivateNewImageAck  uint16 = 48
	TypeProtocolActivateNewImageNack uint16 = 49
	TypeProtocolStartBlockAck        uint16 = 50
	TypeProtocolStartBlockNack       uint16 = 51
	TypeProtocolBlockChunkAck        uint16 = 52
	TypeProtocolBlockChunkNack       uint16 = 53
	TypeProtocolBootLoaderCheck      uint16 = 54
)

// CLASS1.INFORMATION event types the engine reacts to or emits.
const (
	TypeInformationAlive         uint16 = 5
	TypeInformationNodeHeartbeat uint16 = 9
	TypeInformationDateTime      uint16 = 77
)

// Nickname address space. 254 and 255 are reserved; 254 additionally
// marks the upper bound of the probe range and 255 means "no nickname".
const (
	NicknameMax      uint8 = 253
	NicknameProbeMax uint8 = 254
	NicknameFree     uint8 = 255
)

// BootAlgorithmVSCP is the standard VSCP boot loader algorithm
// identifier sent in the enter-boot-loader handshake.
const BootAlgorithmVSCP uint8 = 0

// WhoIsThereChunks is the number of response frames a node answers a
// who-is-there request with. Each carries 7 payload bytes; the
// reassembled 49 bytes hold the GUID followed by the zero-terminated
// MDF URL.
const WhoIsThereChunks = 7
