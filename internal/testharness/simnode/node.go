package simnode

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

// regKey addresses one register within the paged register space.
func regKey(page uint16, reg uint8) uint32 {
	return uint32(page)<<8 | uint32(reg)
}

// Node is a simulated Level I node. All exported knobs must be set
// before the node sees traffic.
type Node struct {
	mu sync.Mutex

	// Identity.
	Nickname uint8
	GUID     wire.GUID
	MDF      string

	// Registers holds the paged register file, keyed by page<<8|reg.
	Registers map[uint32]byte

	// ReadOnly marks registers whose writes do not stick. Writing one
	// produces a verify mismatch on the host side.
	ReadOnly map[uint32]bool

	// Boot loader geometry.
	BlockSize  uint32
	BlockCount uint32

	// Fault injection.
	Silent          bool  // never answer probes
	DropPageReads   int   // swallow this many page read requests
	DropProbes      int   // swallow this many probes
	NackStartBlock  int64 // refuse to start this block index (-1: never)
	NackBlockData   int64 // refuse this block's data checksum (-1: never)
	CorruptBlockCRC bool  // acknowledge blocks with a wrong checksum
	RefuseBoot      bool  // NACK the boot loader handshake
	NackActivate    bool  // NACK image activation

	// Counters for test assertions.
	ReadRequests  int
	WriteRequests int
	ProbesSeen    int

	inBoot          bool
	curBlock        []byte
	curIndex        uint32
	blocks          map[uint32][]byte
	maxBlockStarted int64

	emit func(wire.Event)
}

// NewNode creates a node with a derived GUID, an empty register file
// and 8-byte boot loader blocks. The GUID is mirrored into registers
// 0xD0..0xDF of page 0 as real nodes do.
func NewNode(nickname uint8) *Node {
	var guid wire.GUID
	for i := range guid {
		guid[i] = 0xFF
	}
	guid[14] = 0
	guid[15] = nickname

	n := &Node{
		Nickname:        nickname,
		GUID:            guid,
		MDF:             "example.com/mdf/node.xml",
		Registers:       make(map[uint32]byte),
		ReadOnly:        make(map[uint32]bool),
		BlockSize:       8,
		BlockCount:      1024,
		NackStartBlock:  -1,
		NackBlockData:   -1,
		blocks:          make(map[uint32][]byte),
		maxBlockStarted: -1,
	}
	for i, b := range guid {
		n.Registers[regKey(0, uint8(0xD0+i))] = b
	}
	return n
}

// Handle processes one host event.
func (n *Node) Handle(e wire.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if e.Class != wire.ClassProtocol {
		return
	}

	switch e.Type {
	case wire.TypeProtocolNewNodeOnline:
		n.handleProbe(e)
	case wire.TypeProtocolWhoIsThere:
		n.handleWhoIsThere(e)
	case wire.TypeProtocolSetNickname:
		n.handleSetNickname(e)
	case wire.TypeProtocolExtendedPageRead:
		n.handlePageRead(e)
	case wire.TypeProtocolExtendedPageWrite:
		n.handlePageWrite(e)
	case wire.TypeProtocolEnterBootLoader:
		n.handleEnterBoot(e)
	case wire.TypeProtocolStartBlock:
		n.handleStartBlock(e)
	case wire.TypeProtocolBlockData:
		n.handleBlockData(e)
	case wire.TypeProtocolProgramBlockData:
		n.handleProgramBlock(e)
	case wire.TypeProtocolActivateNewImage:
		n.handleActivate(e)
	}
}

// reply emits a protocol event from this node.
func (n *Node) reply(typ uint16, data []byte) {
	if n.emit == nil {
		return
	}
	n.emit(wire.Event{
		Priority: wire.PriorityNormalLow,
		Class:    wire.ClassProtocol,
		Type:     typ,
		NodeID:   n.Nickname,
		Data:     data,
	})
}

// EmitHeartbeat announces the node through an information heartbeat.
func (n *Node) EmitHeartbeat() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.emit == nil {
		return
	}
	n.emit(wire.Event{
		Priority: wire.PriorityNormalLow,
		Class:    wire.ClassInformation,
		Type:     wire.TypeInformationNodeHeartbeat,
		NodeID:   n.Nickname,
		Data:     []byte{0, 0, 0},
	})
}

// Announce emits a new-node-online announcement.
func (n *Node) Announce() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.emit == nil {
		return
	}
	n.emit(wire.Event{
		Priority: wire.PriorityHighest,
		Class:    wire.ClassProtocol,
		Type:     wire.TypeProtocolNewNodeOnline,
		NodeID:   n.Nickname,
		Data:     []byte{n.Nickname},
	})
}

func (n *Node) handleProbe(e wire.Event) {
	if len(e.Data) != 1 || e.Data[0] != n.Nickname {
		return
	}
	n.ProbesSeen++
	if n.Silent {
		return
	}
	if n.DropProbes > 0 {
		n.DropProbes--
		return
	}
	n.reply(wire.TypeProtocolProbeAck, nil)
}

func (n *Node) handleWhoIsThere(e wire.Event) {
	if len(e.Data) < 1 || e.Data[0] != n.Nickname {
		return
	}

	var buf [wire.WhoIsThereChunks * 7]byte
	copy(buf[:16], n.GUID[:])
	copy(buf[16:], n.MDF)

	for i := 0; i < wire.WhoIsThereChunks; i++ {
		data := make([]byte, 8)
		data[0] = byte(i)
		copy(data[1:], buf[i*7:(i+1)*7])
		n.reply(wire.TypeProtocolWhoIsThereResponse, data)
	}
}

func (n *Node) handleSetNickname(e wire.Event) {
	if len(e.Data) != 2 || e.Data[0] != n.Nickname {
		return
	}
	n.Nickname = e.Data[1]
	n.reply(wire.TypeProtocolNicknameAccepted, []byte{n.Nickname})
}

func (n *Node) handlePageRead(e wire.Event) {
	if len(e.Data) < 4 || e.Data[0] != n.Nickname {
		return
	}
	n.ReadRequests++
	if n.DropPageReads > 0 {
		n.DropPageReads--
		return
	}

	page := uint16(e.Data[1])<<8 | uint16(e.Data[2])
	reg := e.Data[3]
	count := 1
	if len(e.Data) >= 5 && e.Data[4] > 0 {
		count = int(e.Data[4])
	}

	for idx := 0; idx*4 < count; idx++ {
		chunk := count - idx*4
		if chunk > 4 {
			chunk = 4
		}
		data := make([]byte, 4+chunk)
		data[0] = byte(idx)
		data[1] = e.Data[1]
		data[2] = e.Data[2]
		data[3] = reg + byte(idx*4)
		for i := 0; i < chunk; i++ {
			data[4+i] = n.Registers[regKey(page, reg+byte(idx*4+i))]
		}
		n.reply(wire.TypeProtocolExtendedPageResponse, data)
	}
}

func (n *Node) handlePageWrite(e wire.Event) {
	if len(e.Data) < 5 || e.Data[0] != n.Nickname {
		return
	}
	n.WriteRequests++

	page := uint16(e.Data[1])<<8 | uint16(e.Data[2])
	reg := e.Data[3]
	values := e.Data[4:]

	for i, v := range values {
		key := regKey(page, reg+byte(i))
		if !n.ReadOnly[key] {
			n.Registers[key] = v
		}
	}

	// The response echoes what the registers now actually hold.
	data := make([]byte, 4+len(values))
	data[1] = e.Data[1]
	data[2] = e.Data[2]
	data[3] = reg
	for i := range values {
		data[4+i] = n.Registers[regKey(page, reg+byte(i))]
	}
	n.reply(wire.TypeProtocolExtendedPageResponse, data)
}

func (n *Node) handleEnterBoot(e wire.Event) {
	if len(e.Data) != 8 || e.Data[0] != n.Nickname {
		return
	}
	if n.RefuseBoot ||
		e.Data[1] != wire.BootAlgorithmVSCP ||
		e.Data[2] != n.GUID[0] || e.Data[3] != n.GUID[3] ||
		e.Data[4] != n.GUID[5] || e.Data[5] != n.GUID[7] ||
		e.Data[6] != n.Registers[regKey(0, 0x92)] ||
		e.Data[7] != n.Registers[regKey(0, 0x93)] {
		n.reply(wire.TypeProtocolNackBootLoader, nil)
		return
	}

	n.inBoot = true
	n.blocks = make(map[uint32][]byte)
	n.maxBlockStarted = -1

	data := make([]byte, 8)
	binary.BigEndian.PutUint32(data[0:], n.BlockSize)
	binary.BigEndian.PutUint32(data[4:], n.BlockCount)
	n.reply(wire.TypeProtocolAckBootLoader, data)
}

func (n *Node) handleStartBlock(e wire.Event) {
	if !n.inBoot || len(e.Data) < 4 {
		return
	}
	idx := binary.BigEndian.Uint32(e.Data)
	if n.NackStartBlock >= 0 && idx == uint32(n.NackStartBlock) {
		n.reply(wire.TypeProtocolStartBlockNack, e.Data[:4])
		return
	}
	n.curIndex = idx
	n.curBlock = n.curBlock[:0]
	if int64(idx) > n.maxBlockStarted {
		n.maxBlockStarted = int64(idx)
	}
	n.reply(wire.TypeProtocolStartBlockAck, e.Data[:4])
}

func (n *Node) handleBlockData(e wire.Event) {
	if !n.inBoot {
		return
	}
	n.curBlock = append(n.curBlock, e.Data...)
	n.reply(wire.TypeProtocolBlockChunkAck, nil)

	if uint32(len(n.curBlock)) < n.BlockSize {
		return
	}

	if n.NackBlockData >= 0 && n.curIndex == uint32(n.NackBlockData) {
		n.reply(wire.TypeProtocolBlockDataNack, nil)
		return
	}

	crc := wire.Crc16(n.curBlock)
	if n.CorruptBlockCRC {
		crc++
	}
	n.reply(wire.TypeProtocolBlockDataAck, []byte{byte(crc >> 8), byte(crc)})
}

func (n *Node) handleProgramBlock(e wire.Event) {
	if !n.inBoot || len(e.Data) < 4 {
		return
	}
	idx := binary.BigEndian.Uint32(e.Data)
	n.blocks[idx] = append([]byte(nil), n.curBlock...)
	n.reply(wire.TypeProtocolProgramBlockDataAck, e.Data[:4])
}

func (n *Node) handleActivate(e wire.Event) {
	if !n.inBoot || len(e.Data) < 2 {
		return
	}
	want := uint16(e.Data[0])<<8 | uint16(e.Data[1])

	if n.NackActivate || want != wire.Crc16(n.programmedImage()) {
		n.reply(wire.TypeProtocolActivateNewImageNack, nil)
		return
	}

	n.inBoot = false
	n.reply(wire.TypeProtocolActivateNewImageAck, e.Data[:2])
}

// programmedImage concatenates programmed blocks in index order.
// Callers hold n.mu.
func (n *Node) programmedImage() []byte {
	idxs := make([]uint32, 0, len(n.blocks))
	for idx := range n.blocks {
		idxs = append(idxs, idx)
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })

	var img []byte
	for _, idx := range idxs {
		img = append(img, n.blocks[idx]...)
	}
	return img
}

// ProgrammedImage returns the flash contents assembled from programmed
// blocks in index order.
func (n *Node) ProgrammedImage() []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]byte(nil), n.programmedImage()...)
}

// MaxBlockStarted returns the highest block index the node was asked to
// start, or -1.
func (n *Node) MaxBlockStarted() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.maxBlockStarted
}

// InBoot reports whether the node is in boot loader mode.
func (n *Node) InBoot() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inBoot
}

// SetRegister sets one register value directly.
func (n *Node) SetRegister(page uint16, reg uint8, value byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Registers[regKey(page, reg)] = value
}

// Register reads one register value directly.
func (n *Node) Register(page uint16, reg uint8) byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Registers[regKey(page, reg)]
}

// MarkReadOnly makes writes to a register silently fail to stick.
func (n *Node) MarkReadOnly(page uint16, reg uint8) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ReadOnly[regKey(page, reg)] = true
}
