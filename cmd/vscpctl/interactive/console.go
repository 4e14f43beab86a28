// Package interactive provides the command loop for vscpctl.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/vscp-protocol/vscp-go/pkg/engine"
	"github.com/vscp-protocol/vscp-go/pkg/firmware"
	"github.com/vscp-protocol/vscp-go/pkg/sniffer"
	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

// Console is the interactive command loop.
type Console struct {
	engine *engine.Engine
	rl     *readline.Instance
}

// New creates a console on an engine.
func New(e *engine.Engine) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "vscp> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("create readline: %w", err)
	}
	return &Console{engine: e, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the prompt. Use it for
// output from background goroutines.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Close releases the terminal.
func (c *Console) Close() error {
	return c.rl.Close()
}

// Run reads and executes commands until quit, EOF or transport loss.
func (c *Console) Run() {
	c.printHelp()

	for {
		select {
		case <-c.engine.Done():
			fmt.Println("transport lost, exiting")
			return
		default:
		}

		line, err := c.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return
		}

		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()
		case "scan":
			c.cmdScan(args)
		case "nodes", "list", "ls":
			c.cmdNodes()
		case "probe":
			c.cmdProbe(args)
		case "read", "r":
			c.cmdRead(args)
		case "write", "w":
			c.cmdWrite(args)
		case "nickname":
			c.cmdNickname(args)
		case "update":
			c.cmdUpdate(args)
		case "mdf":
			c.cmdMDF(args)
		case "sniff":
			c.cmdSniff(args)
		case "datetime":
			c.cmdDateTime()
		case "status":
			c.cmdStatus()
		case "quit", "exit", "q":
			return
		default:
			fmt.Printf("unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Println(`
VSCP Controller Commands:
  Discovery:
    scan [start stop]                 - Probe a nickname range (default 1 30)
    nodes                             - List known nodes
    probe <node>                      - Check whether a nickname is taken
    nickname <old> <new>              - Move a node to a new nickname
    mdf <node>                        - Show the node's module description

  Registers:
    read <node> <page> <reg> [count]  - Read registers
    write <node> <page> <reg> <hex..> - Write registers, verified

  Firmware:
    update <node> <file>              - Program a firmware image

  Bus:
    sniff [seconds]                   - Watch live traffic (default 10)
    datetime                          - Broadcast the host clock
    status                            - Show engine status

  General:
    help                              - Show this help
    quit                              - Exit`)
}

func (c *Console) cmdScan(args []string) {
	start, stop := uint8(1), uint8(30)
	if len(args) == 2 {
		s, err1 := parseUint8(args[0])
		e, err2 := parseUint8(args[1])
		if err1 != nil || err2 != nil {
			fmt.Println("usage: scan [start stop]")
			return
		}
		start, stop = s, e
	}

	fmt.Printf("scanning %d..%d\n", start, stop)
	found, err := c.engine.Scan(context.Background(), start, stop)
	if err != nil {
		fmt.Printf("scan failed: %v\n", err)
		return
	}
	fmt.Printf("%d node(s) answered\n", len(found))
	c.cmdNodes()
}

func (c *Console) cmdNodes() {
	nodes := c.engine.Nodes()
	if len(nodes) == 0 {
		fmt.Println("no known nodes")
		return
	}
	fmt.Printf("%-5s %-48s %-9s %-20s %s\n", "NODE", "GUID", "SOURCE", "LAST SEEN", "MDF")
	for _, n := range nodes {
		fmt.Printf("%-5d %-48s %-9s %-20s %s\n",
			n.ID, n.GUID, n.Source, n.LastSeen.Format(time.TimeOnly), n.MDF)
	}
}

func (c *Console) cmdProbe(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: probe <node>")
		return
	}
	id, err := parseUint8(args[0])
	if err != nil {
		fmt.Printf("bad nickname: %v\n", err)
		return
	}

	alive, err := c.engine.Probe(context.Background(), id)
	if err != nil {
		fmt.Printf("probe failed: %v\n", err)
		return
	}
	if alive {
		fmt.Printf("node %d answered\n", id)
	} else {
		fmt.Printf("nickname %d is free\n", id)
	}
}

func (c *Console) cmdRead(args []string) {
	if len(args) < 3 || len(args) > 4 {
		fmt.Println("usage: read <node> <page> <reg> [count]")
		return
	}
	node, page, reg, err := parseTarget(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	count := 1
	if len(args) == 4 {
		count, err = strconv.Atoi(args[3])
		if err != nil {
			fmt.Printf("bad count: %v\n", err)
			return
		}
	}

	values, err := c.engine.ReadRegisters(context.Background(), node, page, reg, count)
	if err != nil {
		fmt.Printf("read failed: %v\n", err)
		return
	}
	for i, v := range values {
		fmt.Printf("  %d:0x%02X = 0x%02X\n", page, int(reg)+i, v)
	}
}

func (c *Console) cmdWrite(args []string) {
	if len(args) < 4 {
		fmt.Println("usage: write <node> <page> <reg> <hex byte>...")
		return
	}
	node, page, reg, err := parseTarget(args)
	if err != nil {
		fmt.Println(err)
		return
	}

	values := make([]byte, 0, len(args)-3)
	for _, a := range args[3:] {
		v, err := strconv.ParseUint(strings.TrimPrefix(a, "0x"), 16, 8)
		if err != nil {
			fmt.Printf("bad value %q: %v\n", a, err)
			return
		}
		values = append(values, byte(v))
	}

	if err := c.engine.WriteRegisters(context.Background(), node, page, reg, values); err != nil {
		fmt.Printf("write failed: %v\n", err)
		return
	}
	fmt.Printf("wrote and verified %d register(s)\n", len(values))
}

func (c *Console) cmdNickname(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: nickname <old> <new>")
		return
	}
	oldID, err1 := parseUint8(args[0])
	newID, err2 := parseUint8(args[1])
	if err1 != nil || err2 != nil {
		fmt.Println("bad nickname")
		return
	}

	if err := c.engine.SetNickname(context.Background(), oldID, newID); err != nil {
		fmt.Printf("nickname change failed: %v\n", err)
		return
	}
	fmt.Printf("node %d is now node %d\n", oldID, newID)
}

func (c *Console) cmdUpdate(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: update <node> <file>")
		return
	}
	node, err := parseUint8(args[0])
	if err != nil {
		fmt.Printf("bad nickname: %v\n", err)
		return
	}
	img, err := firmware.LoadImage(args[1])
	if err != nil {
		fmt.Printf("load image: %v\n", err)
		return
	}

	fmt.Printf("updating node %d with %s (%d bytes)\n", node, args[1], img.Size())
	err = c.engine.UpdateFirmware(context.Background(), node, img, func(p firmware.Progress) {
		fmt.Printf("\r  %s %d/%d blocks", p.State, p.Blocks, p.Total)
	})
	fmt.Println()
	if err != nil {
		fmt.Printf("update failed: %v\n", err)
		return
	}
	fmt.Println("update completed")
}

func (c *Console) cmdMDF(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: mdf <node>")
		return
	}
	node, err := parseUint8(args[0])
	if err != nil {
		fmt.Printf("bad nickname: %v\n", err)
		return
	}

	m, err := c.engine.Describe(node)
	if err != nil {
		fmt.Printf("describe failed: %v\n", err)
		return
	}
	fmt.Printf("name:    %s\n", m.Name)
	if m.Model != "" {
		fmt.Printf("model:   %s\n", m.Model)
	}
	if m.Version != "" {
		fmt.Printf("version: %s\n", m.Version)
	}
	if m.Description != "" {
		fmt.Printf("about:   %s\n", m.Description)
	}
	for _, r := range m.Registers {
		fmt.Printf("  %d:0x%02X %-3s %s (default 0x%02X)\n", r.Page, r.Offset, r.Access, r.Name, r.Default)
	}
}

func (c *Console) cmdSniff(args []string) {
	seconds := 10
	if len(args) == 1 {
		s, err := strconv.Atoi(args[0])
		if err != nil || s <= 0 {
			fmt.Println("usage: sniff [seconds]")
			return
		}
		seconds = s
	}

	tap := c.engine.Sniff(sniffer.Filter{})
	defer tap.Close()

	fmt.Printf("sniffing for %ds, Ctrl-C to stop early\n", seconds)
	timeout := time.After(time.Duration(seconds) * time.Second)
	for {
		select {
		case ev, ok := <-tap.Events():
			if !ok {
				return
			}
			fmt.Printf("  %s node=%d prio=%s data=% X\n",
				ev.Label, ev.Event.NodeID, ev.Event.Priority, ev.Event.Data)
		case <-timeout:
			fmt.Printf("sniff done, %d dropped\n", tap.Dropped())
			return
		}
	}
}

func (c *Console) cmdDateTime() {
	if err := c.engine.SendHostDateTime(0, 0); err != nil {
		fmt.Printf("send failed: %v\n", err)
		return
	}
	fmt.Println("host clock broadcast")
}

func (c *Console) cmdStatus() {
	fmt.Printf("connected:     %v\n", c.engine.Connected())
	fmt.Printf("known nodes:   %d\n", len(c.engine.Nodes()))
	fmt.Printf("decode errors: %d\n", c.engine.DecodeErrors())
	fmt.Printf("capture:       %s\n", c.engine.CaptureID())
}

func parseUint8(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	if v > uint64(wire.NicknameMax) {
		return 0, fmt.Errorf("nickname %d out of range", v)
	}
	return uint8(v), nil
}

func parseTarget(args []string) (node uint8, page uint16, reg uint8, err error) {
	node, err = parseUint8(args[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad nickname: %w", err)
	}
	p, err := strconv.ParseUint(args[1], 0, 16)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad page: %w", err)
	}
	r, err := strconv.ParseUint(args[2], 0, 8)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad register: %w", err)
	}
	return node, uint16(p), uint8(r), nil
}
