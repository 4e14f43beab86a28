package mdf

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
)

// ErrUnknownFormat is returned for content that is neither XML nor
// JSON.
var ErrUnknownFormat = errors.New("mdf: unknown format")

// Register describes one register of a module.
type Register struct {
	// Page is the register page.
	Page uint16

	// Offset is the register offset within the page.
	Offset uint8

	// Name is the human readable register name.
	Name string

	// Access is "r", "w" or "rw".
	Access string

	// Default is the factory default value.
	Default byte
}

// Module is a parsed module description.
type Module struct {
	// Name is the module name.
	Name string

	// Model is the hardware model.
	Model string

	// Version is the firmware version the description applies to.
	Version string

	// Description is free-form prose.
	Description string

	// BufferSize is the node's event buffer size in bytes.
	BufferSize int

	// Registers lists the documented registers.
	Registers []Register
}

// Parse decodes a module description, sniffing the format from the
// first non-blank byte: '<' is XML, '{' is JSON.
func Parse(data []byte) (*Module, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, ErrUnknownFormat
	}
	switch trimmed[0] {
	case '<':
		return parseXML(trimmed)
	case '{':
		return parseJSON(trimmed)
	default:
		return nil, ErrUnknownFormat
	}
}

// The XML layout nests the module under a vscp root element with
// registers as attributes-plus-children.
type xmlDocument struct {
	Module struct {
		Name        string `xml:"name"`
		Model       string `xml:"model"`
		Version     string `xml:"version"`
		Description string `xml:"description"`
		BufferSize  int    `xml:"buffersize"`
		Registers   []struct {
			Page    uint16 `xml:"page,attr"`
			Offset  uint8  `xml:"offset,attr"`
			Name    string `xml:"name"`
			Access  string `xml:"access"`
			Default byte   `xml:"default"`
		} `xml:"registers>reg"`
	} `xml:"module"`
}

func parseXML(data []byte) (*Module, error) {
	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("mdf: parse xml: %w", err)
	}

	m := &Module{
		Name:        doc.Module.Name,
		Model:       doc.Module.Model,
		Version:     doc.Module.Version,
		Description: doc.Module.Description,
		BufferSize:  doc.Module.BufferSize,
	}
	for _, r := range doc.Module.Registers {
		m.Registers = append(m.Registers, Register(r))
	}
	return m, nil
}

type jsonDocument struct {
	Module struct {
		Name        string `json:"name"`
		Model       string `json:"model"`
		Version     string `json:"version"`
		Description string `json:"description"`
		BufferSize  int    `json:"buffersize"`
		Registers   []struct {
			Page    uint16 `json:"page"`
			Offset  uint8  `json:"offset"`
			Name    string `json:"name"`
			Access  string `json:"access"`
			Default byte   `json:"default"`
		} `json:"registers"`
	} `json:"module"`
}

func parseJSON(data []byte) (*Module, error) {
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("mdf: parse json: %w", err)
	}

	m := &Module{
		Name:        doc.Module.Name,
		Model:       doc.Module.Model,
		Version:     doc.Module.Version,
		Description: doc.Module.Description,
		BufferSize:  doc.Module.BufferSize,
	}
	for _, r := range doc.Module.Registers {
		m.Registers = append(m.Registers, Register(r))
	}
	return m, nil
}

// RegisterAt finds the documented register at page:offset.
func (m *Module) RegisterAt(page uint16, offset uint8) (Register, bool) {
	for _, r := range m.Registers {
		if r.Page == page && r.Offset == offset {
			return r, true
		}
	}
	return Register{}, false
}
