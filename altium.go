// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package altium reads and writes the component libraries of the Altium
// EDA suite: PcbLib footprint libraries and SchLib symbol libraries. Both
// are OLE compound files whose streams carry either pipe-delimited ASCII
// metadata or vendor binary primitive records.
package altium

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/saferwall/altium/log"
)

// LibraryKind discriminates the two container kinds.
type LibraryKind int

// Library kinds.
const (
	KindUnknown LibraryKind = iota
	KindPcbLib
	KindSchLib
)

// Magic header values carried in the FileHeader stream.
const (
	PcbLibHeaderMagic = "PCB 6.0 Binary Library File"
	SchLibHeaderMagic = "Protel for Windows - Schematic Library Editor Binary File Version 5.0"
)

// String implements fmt.Stringer.
func (k LibraryKind) String() string {
	switch k {
	case KindPcbLib:
		return "PcbLib"
	case KindSchLib:
		return "SchLib"
	}
	return "Unknown"
}

// KindForPath derives the library kind from a file extension.
func KindForPath(path string) LibraryKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pcblib":
		return KindPcbLib
	case ".schlib":
		return KindSchLib
	}
	return KindUnknown
}

// Options configures library parsing.
type Options struct {
	// A custom logger.
	Logger log.Logger
}

// Component is the unit of naming and deletion: one footprint or one
// symbol. Exactly one of Footprint and Symbol is set, matching the owning
// library kind.
type Component struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Footprint   *Footprint `json:"footprint,omitempty"`
	Symbol      *Symbol    `json:"symbol,omitempty"`
}

// Clone returns a deep copy of the component.
func (c *Component) Clone() *Component {
	cp := &Component{Name: c.Name, Description: c.Description}
	if c.Footprint != nil {
		cp.Footprint = c.Footprint.Clone()
	}
	if c.Symbol != nil {
		cp.Symbol = c.Symbol.Clone()
	}
	return cp
}

// IsEmpty reports whether the component holds no primitives at all.
func (c *Component) IsEmpty() bool {
	if c.Footprint != nil {
		return c.Footprint.PrimitiveCount() == 0
	}
	if c.Symbol != nil {
		return c.Symbol.PrimitiveCount() == 0
	}
	return true
}

// Library is the in-memory representation of one component library: an
// ordered, case-insensitively keyed component map plus the auxiliary
// streams of the container.
type Library struct {
	Kind       LibraryKind    `json:"kind"`
	Header     *ParameterList `json:"header"`
	Components []*Component   `json:"components"`

	// Models is the embedded 3-D model registry. PcbLib only.
	Models *ModelRegistry `json:"models,omitempty"`

	// Fonts is the font table of a symbol library. Index 0 is font id 1.
	Fonts []Font `json:"fonts,omitempty"`

	logger *log.Helper
}

// NewLibrary returns a blank library of the given kind with default
// auxiliary state.
func NewLibrary(kind LibraryKind) *Library {
	l := &Library{
		Kind:   kind,
		Header: &ParameterList{},
		logger: log.NewHelper(log.NewFilter(log.DefaultLogger,
			log.FilterLevel(log.LevelError))),
	}
	switch kind {
	case KindPcbLib:
		l.Header.Set("HEADER", PcbLibHeaderMagic)
		l.Models = NewModelRegistry()
	case KindSchLib:
		l.Header.Set("HEADER", SchLibHeaderMagic)
		l.Fonts = []Font{defaultFont()}
	}
	return l
}

// New opens the library file at name. The kind is derived from the file
// extension and verified against the container contents.
func New(name string, opts *Options) (*Library, error) {
	kind := KindForPath(name)
	if kind == KindUnknown {
		return nil, fmt.Errorf("%w: %s", ErrKindMismatch, filepath.Ext(name))
	}
	if _, err := os.Stat(name); err != nil {
		return nil, err
	}
	c, err := OpenContainer(name)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return DecodeLibrary(c, kind, opts)
}

// NewBytes parses a library of the given kind from a memory buffer.
func NewBytes(data []byte, kind LibraryKind, opts *Options) (*Library, error) {
	c, err := ParseContainer(data)
	if err != nil {
		return nil, err
	}
	return DecodeLibrary(c, kind, opts)
}

// DecodeLibrary builds the in-memory model from a parsed container.
func DecodeLibrary(c *Container, kind LibraryKind, opts *Options) (*Library, error) {
	l := NewLibrary(kind)
	if opts != nil && opts.Logger != nil {
		l.logger = log.NewHelper(opts.Logger)
	}
	var err error
	switch kind {
	case KindPcbLib:
		err = l.decodePcbLib(c)
	case KindSchLib:
		err = l.decodeSchLib(c)
	default:
		err = ErrKindMismatch
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Encode serialises the model into a fresh container.
func (l *Library) Encode() (*Container, error) {
	switch l.Kind {
	case KindPcbLib:
		return l.encodePcbLib()
	case KindSchLib:
		return l.encodeSchLib()
	}
	return nil, ErrKindMismatch
}

// WriteFile serialises and atomically writes the library to path.
func (l *Library) WriteFile(path string) error {
	c, err := l.Encode()
	if err != nil {
		return err
	}
	return c.WriteFile(path)
}

// storageKey is the case-insensitive lookup key for component names.
func storageKey(name string) string {
	return strings.ToUpper(name)
}

// indexOf returns the position of the named component, or -1. The match is
// case-insensitive, like container storage lookup.
func (l *Library) indexOf(name string) int {
	key := storageKey(name)
	for i, c := range l.Components {
		if storageKey(c.Name) == key {
			return i
		}
	}
	return -1
}

// Get returns the component with the exact given name.
func (l *Library) Get(name string) (*Component, bool) {
	if i := l.indexOf(name); i >= 0 && l.Components[i].Name == name {
		return l.Components[i], true
	}
	return nil, false
}

// Lookup returns the component under the case-insensitive storage key.
func (l *Library) Lookup(name string) (*Component, bool) {
	if i := l.indexOf(name); i >= 0 {
		return l.Components[i], true
	}
	return nil, false
}

// Names lists component names in order.
func (l *Library) Names() []string {
	out := make([]string, len(l.Components))
	for i, c := range l.Components {
		out[i] = c.Name
	}
	return out
}

// Add appends a component, failing when the name is already taken under the
// case-insensitive storage key.
func (l *Library) Add(c *Component) error {
	if l.indexOf(c.Name) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateName, c.Name)
	}
	l.Components = append(l.Components, c)
	return nil
}

// Insert places a component at position i, with the same duplicate check
// as Add.
func (l *Library) Insert(i int, c *Component) error {
	if l.indexOf(c.Name) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateName, c.Name)
	}
	if i < 0 || i > len(l.Components) {
		i = len(l.Components)
	}
	l.Components = append(l.Components, nil)
	copy(l.Components[i+1:], l.Components[i:])
	l.Components[i] = c
	return nil
}

// Replace swaps the component at the position currently held by name,
// preserving order.
func (l *Library) Replace(name string, c *Component) error {
	i := l.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrComponentNotFound, name)
	}
	if j := l.indexOf(c.Name); j >= 0 && j != i {
		return fmt.Errorf("%w: %s", ErrDuplicateName, c.Name)
	}
	l.Components[i] = c
	return nil
}

// Remove deletes the component with the exact given name and reports
// whether it was present.
func (l *Library) Remove(name string) bool {
	for i, c := range l.Components {
		if c.Name == name {
			l.Components = append(l.Components[:i], l.Components[i+1:]...)
			return true
		}
	}
	return false
}

// Rename changes a component's name in place, preserving its position and
// primitive identity.
func (l *Library) Rename(oldName, newName string) error {
	i := l.indexOf(oldName)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrComponentNotFound, oldName)
	}
	if j := l.indexOf(newName); j >= 0 && j != i {
		return fmt.Errorf("%w: %s", ErrDuplicateName, newName)
	}
	l.Components[i].Name = newName
	return nil
}

// Reorder permutes the component list to start with the given prefix.
// Names not present are ignored; components not listed keep their relative
// order and are appended. The appended tail is returned.
func (l *Library) Reorder(prefix []string) []string {
	var head []*Component
	taken := make(map[int]bool)
	for _, name := range prefix {
		if i := l.indexOf(name); i >= 0 && !taken[i] {
			head = append(head, l.Components[i])
			taken[i] = true
		}
	}
	var tailNames []string
	for i, c := range l.Components {
		if !taken[i] {
			head = append(head, c)
			tailNames = append(tailNames, c.Name)
		}
	}
	l.Components = head
	return tailNames
}

// syncHeaderCount refreshes the declared component count so it matches the
// component map after every mutation.
func (l *Library) syncHeaderCount() {
	switch l.Kind {
	case KindPcbLib:
		l.Header.Set("COMPONENTCOUNT", fmt.Sprintf("%d", len(l.Components)))
	case KindSchLib:
		l.Header.Set("CompCount", fmt.Sprintf("%d", len(l.Components)))
	}
}
