// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/richardlehane/mscfb"
)

const (
	cfbSectorSize     = 512
	cfbMiniSectorSize = 64
	cfbMiniCutoff     = 4096
	cfbDirEntrySize   = 128

	// cfbMaxNameUnits is the compound-file limit on entry names: 31 UTF-16
	// code units plus the NUL terminator inside the 64-byte name field.
	cfbMaxNameUnits = 31

	secFree      = 0xFFFFFFFF
	secEndChain  = 0xFFFFFFFE
	secFAT       = 0xFFFFFFFD
	secDIFAT     = 0xFFFFFFFC
	noStream     = 0xFFFFFFFF
	objStorage   = 1
	objStream    = 2
	objRoot      = 5
	colorBlack   = 1
	cfbMajorVer3 = 3
)

var cfbSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// DirEntry is a node of the in-memory compound-file tree: a stream carrying
// bytes or a storage carrying ordered children.
type DirEntry struct {
	Name      string      `json:"name"`
	IsStorage bool        `json:"is_storage"`
	Data      []byte      `json:"-"`
	Children  []*DirEntry `json:"children,omitempty"`
}

func (e *DirEntry) child(name string) *DirEntry {
	for _, c := range e.Children {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

func (e *DirEntry) removeChild(name string) bool {
	for i, c := range e.Children {
		if strings.EqualFold(c.Name, name) {
			e.Children = append(e.Children[:i], e.Children[i+1:]...)
			return true
		}
	}
	return false
}

// Container is an OLE compound file held fully in memory. Lookup is
// case-insensitive, storage is case-preserving, and sibling order is the
// order entries were added.
type Container struct {
	Root *DirEntry

	f    *os.File
	data mmap.MMap
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{Root: &DirEntry{Name: "Root Entry", IsStorage: true}}
}

// OpenContainer memory-maps the file at path and parses its directory into
// an in-memory tree. The mapping is released on Close.
func OpenContainer(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	c, err := parseContainer(bytes.NewReader(data))
	if err != nil {
		data.Unmap()
		f.Close()
		return nil, err
	}
	c.f = f
	c.data = data
	return c, nil
}

// ParseContainer decodes a compound file from a memory buffer.
func ParseContainer(b []byte) (*Container, error) {
	return parseContainer(bytes.NewReader(b))
}

func parseContainer(ra io.ReaderAt) (*Container, error) {
	doc, err := mscfb.New(ra)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCompoundFile, err)
	}
	c := NewContainer()
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		parent := c.Root
		for _, anc := range entry.Path {
			next := parent.child(anc)
			if next == nil {
				next = &DirEntry{Name: anc, IsStorage: true}
				parent.Children = append(parent.Children, next)
			}
			next.IsStorage = true
			parent = next
		}
		node := parent.child(entry.Name)
		if node == nil {
			node = &DirEntry{Name: entry.Name}
			parent.Children = append(parent.Children, node)
		}
		if entry.Size > 0 {
			buf := make([]byte, entry.Size)
			if _, err := io.ReadFull(entry, buf); err != nil && err != io.EOF &&
				err != io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("read stream %s: %w", entry.Name, err)
			}
			node.Data = buf
		}
	}
	return c, nil
}

// Close releases the mapping and file handle of an opened container.
func (c *Container) Close() error {
	var err error
	if c.data != nil {
		err = c.data.Unmap()
		c.data = nil
	}
	if c.f != nil {
		if cerr := c.f.Close(); err == nil {
			err = cerr
		}
		c.f = nil
	}
	return err
}

// resolve walks the path down to the named entry.
func (c *Container) resolve(path ...string) *DirEntry {
	cur := c.Root
	for _, name := range path {
		cur = cur.child(name)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Stream returns the bytes of the stream at path.
func (c *Container) Stream(path ...string) ([]byte, error) {
	e := c.resolve(path...)
	if e == nil || e.IsStorage {
		return nil, fmt.Errorf("%w: %s", ErrStreamNotFound, strings.Join(path, "/"))
	}
	return e.Data, nil
}

// HasStream reports whether a stream exists at path.
func (c *Container) HasStream(path ...string) bool {
	e := c.resolve(path...)
	return e != nil && !e.IsStorage
}

// SetStream writes data into the stream at path, creating intermediate
// storages as needed.
func (c *Container) SetStream(data []byte, path ...string) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path", ErrStreamNotFound)
	}
	parent := c.Root
	for _, name := range path[:len(path)-1] {
		next := parent.child(name)
		if next == nil {
			var err error
			next, err = addEntry(parent, name, true)
			if err != nil {
				return err
			}
		}
		parent = next
	}
	name := path[len(path)-1]
	e := parent.child(name)
	if e == nil {
		var err error
		e, err = addEntry(parent, name, false)
		if err != nil {
			return err
		}
	}
	e.Data = data
	return nil
}

// Storage returns the storage at path.
func (c *Container) Storage(path ...string) (*DirEntry, error) {
	e := c.resolve(path...)
	if e == nil || !e.IsStorage {
		return nil, fmt.Errorf("%w: %s", ErrStorageNotFound, strings.Join(path, "/"))
	}
	return e, nil
}

// CreateStorage adds a storage at path. Names longer than the compound-file
// limit are truncated; a truncation that collides with a sibling fails with
// ErrNameCollision.
func (c *Container) CreateStorage(path ...string) (*DirEntry, error) {
	if len(path) == 0 {
		return c.Root, nil
	}
	parent := c.Root
	for _, name := range path[:len(path)-1] {
		next := parent.child(name)
		if next == nil {
			var err error
			next, err = addEntry(parent, name, true)
			if err != nil {
				return nil, err
			}
		}
		parent = next
	}
	name := path[len(path)-1]
	if e := parent.child(name); e != nil {
		if e.IsStorage {
			return e, nil
		}
		return nil, fmt.Errorf("%w: %s exists as a stream", ErrNameCollision, name)
	}
	return addEntry(parent, name, true)
}

// DeleteEntry removes the stream or storage at path.
func (c *Container) DeleteEntry(path ...string) error {
	if len(path) == 0 {
		return ErrStorageNotFound
	}
	parent := c.resolve(path[:len(path)-1]...)
	if parent == nil {
		return fmt.Errorf("%w: %s", ErrStorageNotFound, strings.Join(path, "/"))
	}
	if !parent.removeChild(path[len(path)-1]) {
		return fmt.Errorf("%w: %s", ErrStreamNotFound, strings.Join(path, "/"))
	}
	return nil
}

// RenameStorage renames the entry at path to newName, applying name
// truncation. The rename keeps the entry's position among its siblings.
func (c *Container) RenameStorage(newName string, path ...string) error {
	if len(path) == 0 {
		return ErrStorageNotFound
	}
	parent := c.resolve(path[:len(path)-1]...)
	if parent == nil {
		return fmt.Errorf("%w: %s", ErrStorageNotFound, strings.Join(path, "/"))
	}
	e := parent.child(path[len(path)-1])
	if e == nil {
		return fmt.Errorf("%w: %s", ErrStorageNotFound, strings.Join(path, "/"))
	}
	stored := TruncateStorageName(newName)
	if sib := parent.child(stored); sib != nil && sib != e {
		return fmt.Errorf("%w: %s", ErrNameCollision, stored)
	}
	e.Name = stored
	return nil
}

func addEntry(parent *DirEntry, name string, storage bool) (*DirEntry, error) {
	stored := TruncateStorageName(name)
	if parent.child(stored) != nil {
		return nil, fmt.Errorf("%w: %s", ErrNameCollision, stored)
	}
	e := &DirEntry{Name: stored, IsStorage: storage}
	parent.Children = append(parent.Children, e)
	return e, nil
}

// TruncateStorageName cuts a name to the 31 UTF-16 code unit limit of a
// compound-file directory entry, never splitting a surrogate pair.
func TruncateStorageName(name string) string {
	if utf16Units(name) <= cfbMaxNameUnits {
		return name
	}
	units := 0
	for i, r := range name {
		w := 1
		if r > 0xFFFF {
			w = 2
		}
		if units+w > cfbMaxNameUnits {
			return name[:i]
		}
		units += w
	}
	return name
}

// Bytes serialises the container to compound-file format.
func (c *Container) Bytes() ([]byte, error) {
	w := &cfbWriter{}
	return w.write(c.Root)
}

// WriteFile commits the container atomically: the serialised bytes go to a
// temporary sibling which is fsynced and renamed over path.
func (c *Container) WriteFile(path string) error {
	data, err := c.Bytes()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// flatEntry is a directory entry resolved to its on-disk form.
type flatEntry struct {
	node    *DirEntry
	objType byte
	left    uint32
	right   uint32
	childID uint32
	start   uint32
	size    uint64
}

// cfbWriter lays out sectors for a directory tree and emits the image.
// Sector plan: FAT, DIFAT (rare), directory, miniFAT, ministream, then the
// large streams, each chained consecutively.
type cfbWriter struct {
	entries []*flatEntry
}

func (w *cfbWriter) write(root *DirEntry) ([]byte, error) {
	w.entries = nil
	rootFlat := &flatEntry{node: root, objType: objRoot,
		left: noStream, right: noStream, childID: noStream}
	w.entries = append(w.entries, rootFlat)
	if err := w.flatten(root, rootFlat); err != nil {
		return nil, err
	}

	// Split streams across the mini and regular FAT.
	var miniStream bytes.Buffer
	var large []*flatEntry
	miniSectors := 0
	for _, fe := range w.entries[1:] {
		if fe.objType != objStream {
			continue
		}
		fe.size = uint64(len(fe.node.Data))
		if fe.size == 0 {
			fe.start = secEndChain
			continue
		}
		if fe.size < cfbMiniCutoff {
			fe.start = uint32(miniSectors)
			miniStream.Write(fe.node.Data)
			pad := (cfbMiniSectorSize - miniStream.Len()%cfbMiniSectorSize) % cfbMiniSectorSize
			miniStream.Write(make([]byte, pad))
			miniSectors += (len(fe.node.Data) + cfbMiniSectorSize - 1) / cfbMiniSectorSize
		} else {
			large = append(large, fe)
		}
	}
	rootFlat.size = uint64(miniStream.Len())

	dirCount := len(w.entries)
	entriesPerSector := cfbSectorSize / cfbDirEntrySize
	dirSectors := (dirCount + entriesPerSector - 1) / entriesPerSector
	if dirSectors == 0 {
		dirSectors = 1
	}
	miniFATSectors := 0
	if miniSectors > 0 {
		miniFATSectors = (miniSectors*4 + cfbSectorSize - 1) / cfbSectorSize
	}
	miniStreamSectors := (miniStream.Len() + cfbSectorSize - 1) / cfbSectorSize
	largeSectors := 0
	for _, fe := range large {
		largeSectors += int((fe.size + cfbSectorSize - 1) / cfbSectorSize)
	}
	payload := dirSectors + miniFATSectors + miniStreamSectors + largeSectors

	// FAT and DIFAT sector counts depend on the total, so iterate to a
	// fixpoint.
	fatSectors, difatSectors := 1, 0
	for {
		total := payload + fatSectors + difatSectors
		needFAT := (total*4 + cfbSectorSize - 1) / cfbSectorSize
		needDIFAT := 0
		if needFAT > 109 {
			needDIFAT = (needFAT - 109 + 126) / 127
		}
		if needFAT == fatSectors && needDIFAT == difatSectors {
			break
		}
		fatSectors, difatSectors = needFAT, needDIFAT
	}
	totalSectors := payload + fatSectors + difatSectors

	// Assign sector ids.
	next := uint32(0)
	fatStart := next
	next += uint32(fatSectors)
	difatStart := next
	next += uint32(difatSectors)
	dirStart := next
	next += uint32(dirSectors)
	miniFATStart := uint32(secEndChain)
	if miniFATSectors > 0 {
		miniFATStart = next
		next += uint32(miniFATSectors)
	}
	miniStreamStart := uint32(secEndChain)
	if miniStreamSectors > 0 {
		miniStreamStart = next
		next += uint32(miniStreamSectors)
	}
	for _, fe := range large {
		fe.start = next
		next += uint32((fe.size + cfbSectorSize - 1) / cfbSectorSize)
	}
	if miniStreamSectors > 0 {
		rootFlat.start = miniStreamStart
	} else {
		rootFlat.start = secEndChain
	}

	// FAT.
	fat := make([]uint32, fatSectors*cfbSectorSize/4)
	for i := range fat {
		fat[i] = secFree
	}
	for i := 0; i < fatSectors; i++ {
		fat[int(fatStart)+i] = secFAT
	}
	for i := 0; i < difatSectors; i++ {
		fat[int(difatStart)+i] = secDIFAT
	}
	chainOut := func(start uint32, n int) {
		for i := 0; i < n; i++ {
			if i == n-1 {
				fat[int(start)+i] = secEndChain
			} else {
				fat[int(start)+i] = start + uint32(i) + 1
			}
		}
	}
	chainOut(dirStart, dirSectors)
	if miniFATSectors > 0 {
		chainOut(miniFATStart, miniFATSectors)
	}
	if miniStreamSectors > 0 {
		chainOut(miniStreamStart, miniStreamSectors)
	}
	for _, fe := range large {
		chainOut(fe.start, int((fe.size+cfbSectorSize-1)/cfbSectorSize))
	}

	// Mini FAT.
	miniFAT := make([]uint32, miniFATSectors*cfbSectorSize/4)
	for i := range miniFAT {
		miniFAT[i] = secFree
	}
	for _, fe := range w.entries[1:] {
		if fe.objType != objStream || fe.size == 0 || fe.size >= cfbMiniCutoff {
			continue
		}
		n := int((fe.size + cfbMiniSectorSize - 1) / cfbMiniSectorSize)
		for i := 0; i < n; i++ {
			if i == n-1 {
				miniFAT[int(fe.start)+i] = secEndChain
			} else {
				miniFAT[int(fe.start)+i] = fe.start + uint32(i) + 1
			}
		}
	}

	// Emit.
	out := bytes.NewBuffer(make([]byte, 0, cfbSectorSize*(1+totalSectors)))
	w.writeHeader(out, fatSectors, difatSectors, fatStart, difatStart, dirStart,
		miniFATStart, miniFATSectors)
	le := binary.LittleEndian
	for _, v := range fat {
		var b [4]byte
		le.PutUint32(b[:], v)
		out.Write(b[:])
	}
	// DIFAT overflow sectors carry FAT sector ids 109.. plus a next pointer.
	for d := 0; d < difatSectors; d++ {
		for i := 0; i < 127; i++ {
			idx := 109 + d*127 + i
			var b [4]byte
			if idx < fatSectors {
				le.PutUint32(b[:], fatStart+uint32(idx))
			} else {
				le.PutUint32(b[:], secFree)
			}
			out.Write(b[:])
		}
		var b [4]byte
		if d == difatSectors-1 {
			le.PutUint32(b[:], secEndChain)
		} else {
			le.PutUint32(b[:], difatStart+uint32(d)+1)
		}
		out.Write(b[:])
	}
	for i, fe := range w.entries {
		w.writeDirEntry(out, fe, i == 0)
	}
	for i := len(w.entries); i < dirSectors*entriesPerSector; i++ {
		w.writeFreeDirEntry(out)
	}
	for _, v := range miniFAT {
		var b [4]byte
		le.PutUint32(b[:], v)
		out.Write(b[:])
	}
	if miniStreamSectors > 0 {
		out.Write(miniStream.Bytes())
		pad := miniStreamSectors*cfbSectorSize - miniStream.Len()
		out.Write(make([]byte, pad))
	}
	for _, fe := range large {
		out.Write(fe.node.Data)
		pad := (cfbSectorSize - len(fe.node.Data)%cfbSectorSize) % cfbSectorSize
		out.Write(make([]byte, pad))
	}
	return out.Bytes(), nil
}

// flatten assigns directory ids depth-first and builds each storage's child
// tree as a balanced binary search tree over the compound-file sort order.
func (w *cfbWriter) flatten(node *DirEntry, fe *flatEntry) error {
	if len(node.Children) == 0 {
		return nil
	}
	kids := make([]*DirEntry, len(node.Children))
	copy(kids, node.Children)
	sort.SliceStable(kids, func(i, j int) bool {
		return cfbNameLess(kids[i].Name, kids[j].Name)
	})
	flats := make(map[*DirEntry]*flatEntry, len(kids))
	for _, k := range kids {
		if utf16Units(k.Name) > cfbMaxNameUnits {
			return fmt.Errorf("%w: %s", ErrNameCollision, k.Name)
		}
		kf := &flatEntry{node: k, left: noStream, right: noStream, childID: noStream}
		if k.IsStorage {
			kf.objType = objStorage
		} else {
			kf.objType = objStream
		}
		flats[k] = kf
		w.entries = append(w.entries, kf)
	}
	var build func(lo, hi int) uint32
	build = func(lo, hi int) uint32 {
		if lo >= hi {
			return noStream
		}
		mid := (lo + hi) / 2
		kf := flats[kids[mid]]
		kf.left = build(lo, mid)
		kf.right = build(mid+1, hi)
		return w.idOf(kf)
	}
	fe.childID = build(0, len(kids))
	for _, k := range kids {
		if err := w.flatten(k, flats[k]); err != nil {
			return err
		}
	}
	return nil
}

func (w *cfbWriter) idOf(fe *flatEntry) uint32 {
	for i, e := range w.entries {
		if e == fe {
			return uint32(i)
		}
	}
	return noStream
}

// cfbNameLess implements the directory ordering rule: shorter UTF-16 names
// first, then case-folded comparison.
func cfbNameLess(a, b string) bool {
	la, lb := utf16Units(a), utf16Units(b)
	if la != lb {
		return la < lb
	}
	return strings.ToUpper(a) < strings.ToUpper(b)
}

func (w *cfbWriter) writeHeader(out *bytes.Buffer, fatSectors, difatSectors int,
	fatStart, difatStart, dirStart, miniFATStart uint32, miniFATSectors int) {

	le := binary.LittleEndian
	hdr := make([]byte, cfbSectorSize)
	copy(hdr, cfbSignature)
	le.PutUint16(hdr[24:], 0x003E)        // minor version
	le.PutUint16(hdr[26:], cfbMajorVer3)  // major version
	le.PutUint16(hdr[28:], 0xFFFE)        // byte order
	le.PutUint16(hdr[30:], 9)             // sector shift
	le.PutUint16(hdr[32:], 6)             // mini sector shift
	le.PutUint32(hdr[44:], uint32(fatSectors))
	le.PutUint32(hdr[48:], dirStart)
	le.PutUint32(hdr[56:], cfbMiniCutoff)
	le.PutUint32(hdr[60:], miniFATStart)
	le.PutUint32(hdr[64:], uint32(miniFATSectors))
	if difatSectors > 0 {
		le.PutUint32(hdr[68:], difatStart)
	} else {
		le.PutUint32(hdr[68:], secEndChain)
	}
	le.PutUint32(hdr[72:], uint32(difatSectors))
	for i := 0; i < 109; i++ {
		off := 76 + i*4
		if i < fatSectors {
			le.PutUint32(hdr[off:], fatStart+uint32(i))
		} else {
			le.PutUint32(hdr[off:], secFree)
		}
	}
	out.Write(hdr)
}

func (w *cfbWriter) writeDirEntry(out *bytes.Buffer, fe *flatEntry, isRoot bool) {
	le := binary.LittleEndian
	b := make([]byte, cfbDirEntrySize)
	name := encodeUTF16(fe.node.Name)
	if len(name) > 62 {
		name = name[:62]
	}
	copy(b, name)
	le.PutUint16(b[64:], uint16(len(name)+2)) // bytes incl NUL terminator
	b[66] = fe.objType
	b[67] = colorBlack
	le.PutUint32(b[68:], fe.left)
	le.PutUint32(b[72:], fe.right)
	le.PutUint32(b[76:], fe.childID)
	le.PutUint32(b[116:], fe.start)
	le.PutUint64(b[120:], fe.size)
	if isRoot {
		b[67] = colorBlack
	}
	out.Write(b)
}

func (w *cfbWriter) writeFreeDirEntry(out *bytes.Buffer) {
	le := binary.LittleEndian
	b := make([]byte, cfbDirEntrySize)
	le.PutUint32(b[68:], noStream)
	le.PutUint32(b[72:], noStream)
	le.PutUint32(b[76:], noStream)
	out.Write(b)
}
