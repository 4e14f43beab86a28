// Package mdf reads module description files.
//
// Nodes do not carry their own documentation; they announce a URL
// pointing at a description of the module, its register layout and its
// defaults. Descriptions come in XML and JSON flavors, distinguished by
// their first non-blank byte.
//
// The resolver turns announced URLs into parsed descriptions from a
// local mirror directory and can also serve that mirror over HTTP for
// nodes on the same network.
package mdf
