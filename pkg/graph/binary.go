package graph

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"
)

const (
	magicBytes = "SHEPHERD"
	version    = uint32(1)
	maxNodes   = 100_000_000
	maxEdges   = 500_000_000
)

// fileHeader is the binary header. Every later section's size follows from
// these counts, so the layout is fully determined and re-serializing a loaded
// snapshot reproduces identical bytes.
type fileHeader struct {
	Magic    [8]byte
	Version  uint32
	NumNodes uint32
	NumEdges uint32 // overlay edge count (FwdValueOf/BwdValueOf length)
	NumFwd   uint32 // len(ColsFwd)
	NumBwd   uint32 // len(ColsBwd)
}

// WriteSnapshot serializes a CSR snapshot to a binary file, written to a
// temp file first and renamed into place.
func WriteSnapshot(path string, csr *CSRGraph) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // clean up on error
	}()

	crcWriter := crc32Writer{w: f, hash: crc32.NewIEEE()}
	w := &crcWriter

	hdr := fileHeader{
		Version:  version,
		NumNodes: uint32(len(csr.Nodes)),
		NumEdges: uint32(len(csr.FwdValueOf)),
		NumFwd:   uint32(len(csr.ColsFwd)),
		NumBwd:   uint32(len(csr.ColsBwd)),
	}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	// Node columns.
	n := len(csr.Nodes)
	osmIDs := make([]int64, n)
	ranks := make([]uint32, n)
	lats := make([]float32, n)
	lons := make([]float32, n)
	flags := make([]byte, n)
	for i := range csr.Nodes {
		nd := &csr.Nodes[i]
		osmIDs[i] = nd.OSMID
		ranks[i] = nd.Rank
		lats[i] = nd.Lat
		lons[i] = nd.Lon
		flags[i] = nd.Flags
	}
	if err := writeInt64Slice(w, osmIDs); err != nil {
		return fmt.Errorf("write osm ids: %w", err)
	}
	if err := writeUint32Slice(w, ranks); err != nil {
		return fmt.Errorf("write ranks: %w", err)
	}
	if err := writeFloat32Slice(w, lats); err != nil {
		return fmt.Errorf("write lats: %w", err)
	}
	if err := writeFloat32Slice(w, lons); err != nil {
		return fmt.Errorf("write lons: %w", err)
	}
	if _, err := w.Write(flags); err != nil {
		return fmt.Errorf("write flags: %w", err)
	}

	// CSR views.
	if err := writeUint32Slice(w, csr.RowFwdPtr); err != nil {
		return fmt.Errorf("write RowFwdPtr: %w", err)
	}
	if err := writeUint32Slice(w, csr.ColsFwd); err != nil {
		return fmt.Errorf("write ColsFwd: %w", err)
	}
	if err := writeUint32Slice(w, csr.RowBwdPtr); err != nil {
		return fmt.Errorf("write RowBwdPtr: %w", err)
	}
	if err := writeUint32Slice(w, csr.ColsBwd); err != nil {
		return fmt.Errorf("write ColsBwd: %w", err)
	}

	// Hot and cold values as columns.
	numValues := len(csr.ValuesHot)
	targets := make([]uint32, numValues)
	weights := make([]float32, numValues)
	froms := make([]uint32, numValues)
	tos := make([]uint32, numValues)
	prevs := make([]uint32, numValues)
	nexts := make([]uint32, numValues)
	for i := range csr.ValuesHot {
		targets[i] = csr.ValuesHot[i].Target
		weights[i] = csr.ValuesHot[i].Weight
		froms[i] = csr.ValuesCold[i].From
		tos[i] = csr.ValuesCold[i].To
		prevs[i] = csr.ValuesCold[i].PrevEdge
		nexts[i] = csr.ValuesCold[i].NextEdge
	}
	if err := writeUint32Slice(w, targets); err != nil {
		return fmt.Errorf("write targets: %w", err)
	}
	if err := writeFloat32Slice(w, weights); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}
	if err := writeUint32Slice(w, froms); err != nil {
		return fmt.Errorf("write froms: %w", err)
	}
	if err := writeUint32Slice(w, tos); err != nil {
		return fmt.Errorf("write tos: %w", err)
	}
	if err := writeUint32Slice(w, prevs); err != nil {
		return fmt.Errorf("write prev edges: %w", err)
	}
	if err := writeUint32Slice(w, nexts); err != nil {
		return fmt.Errorf("write next edges: %w", err)
	}

	// Edge-ID → value-index tables.
	if err := writeUint32Slice(w, csr.FwdValueOf); err != nil {
		return fmt.Errorf("write FwdValueOf: %w", err)
	}
	if err := writeUint32Slice(w, csr.BwdValueOf); err != nil {
		return fmt.Errorf("write BwdValueOf: %w", err)
	}

	// Name table: per-record lengths, then the concatenated bytes.
	nameLens := make([]uint32, numValues)
	var blobLen int
	for i := range csr.ValuesCold {
		nameLens[i] = uint32(len(csr.ValuesCold[i].Name))
		blobLen += len(csr.ValuesCold[i].Name)
	}
	if err := writeUint32Slice(w, nameLens); err != nil {
		return fmt.Errorf("write name lengths: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(blobLen)); err != nil {
		return fmt.Errorf("write name blob length: %w", err)
	}
	for i := range csr.ValuesCold {
		if _, err := io.WriteString(w, csr.ValuesCold[i].Name); err != nil {
			return fmt.Errorf("write name blob: %w", err)
		}
	}

	// CRC32 trailer.
	checksum := crcWriter.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

// ReadSnapshot deserializes a CSR snapshot from a binary file.
func ReadSnapshot(path string) (*CSRGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	crcReader := crc32Reader{r: f, hash: crc32.NewIEEE()}
	r := &crcReader

	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != version {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}
	if hdr.NumNodes > maxNodes {
		return nil, fmt.Errorf("NumNodes %d exceeds limit %d", hdr.NumNodes, maxNodes)
	}
	if hdr.NumFwd > maxEdges || hdr.NumBwd > maxEdges || hdr.NumEdges > maxEdges {
		return nil, fmt.Errorf("edge count exceeds limit %d", maxEdges)
	}
	numValues := int(hdr.NumFwd) + int(hdr.NumBwd)

	n := int(hdr.NumNodes)
	osmIDs, err := readInt64Slice(r, n)
	if err != nil {
		return nil, fmt.Errorf("read osm ids: %w", err)
	}
	ranks, err := readUint32Slice(r, n)
	if err != nil {
		return nil, fmt.Errorf("read ranks: %w", err)
	}
	lats, err := readFloat32Slice(r, n)
	if err != nil {
		return nil, fmt.Errorf("read lats: %w", err)
	}
	lons, err := readFloat32Slice(r, n)
	if err != nil {
		return nil, fmt.Errorf("read lons: %w", err)
	}
	flags := make([]byte, n)
	if _, err := io.ReadFull(r, flags); err != nil {
		return nil, fmt.Errorf("read flags: %w", err)
	}

	csr := &CSRGraph{Nodes: make([]CSRNode, n)}
	for i := 0; i < n; i++ {
		csr.Nodes[i] = CSRNode{
			DenseID: uint32(i),
			OSMID:   osmIDs[i],
			Rank:    ranks[i],
			Lat:     lats[i],
			Lon:     lons[i],
			Flags:   flags[i],
		}
	}

	if csr.RowFwdPtr, err = readUint32Slice(r, n+1); err != nil {
		return nil, fmt.Errorf("read RowFwdPtr: %w", err)
	}
	if csr.ColsFwd, err = readUint32Slice(r, int(hdr.NumFwd)); err != nil {
		return nil, fmt.Errorf("read ColsFwd: %w", err)
	}
	if csr.RowBwdPtr, err = readUint32Slice(r, n+1); err != nil {
		return nil, fmt.Errorf("read RowBwdPtr: %w", err)
	}
	if csr.ColsBwd, err = readUint32Slice(r, int(hdr.NumBwd)); err != nil {
		return nil, fmt.Errorf("read ColsBwd: %w", err)
	}

	targets, err := readUint32Slice(r, numValues)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	weights, err := readFloat32Slice(r, numValues)
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	froms, err := readUint32Slice(r, numValues)
	if err != nil {
		return nil, fmt.Errorf("read froms: %w", err)
	}
	tos, err := readUint32Slice(r, numValues)
	if err != nil {
		return nil, fmt.Errorf("read tos: %w", err)
	}
	prevs, err := readUint32Slice(r, numValues)
	if err != nil {
		return nil, fmt.Errorf("read prev edges: %w", err)
	}
	nexts, err := readUint32Slice(r, numValues)
	if err != nil {
		return nil, fmt.Errorf("read next edges: %w", err)
	}

	if csr.FwdValueOf, err = readUint32Slice(r, int(hdr.NumEdges)); err != nil {
		return nil, fmt.Errorf("read FwdValueOf: %w", err)
	}
	if csr.BwdValueOf, err = readUint32Slice(r, int(hdr.NumEdges)); err != nil {
		return nil, fmt.Errorf("read BwdValueOf: %w", err)
	}

	nameLens, err := readUint32Slice(r, numValues)
	if err != nil {
		return nil, fmt.Errorf("read name lengths: %w", err)
	}
	var blobLen uint32
	if err := binary.Read(r, binary.LittleEndian, &blobLen); err != nil {
		return nil, fmt.Errorf("read name blob length: %w", err)
	}
	var total uint64
	for _, l := range nameLens {
		total += uint64(l)
	}
	if total != uint64(blobLen) {
		return nil, fmt.Errorf("name table corrupt: lengths sum to %d, blob is %d", total, blobLen)
	}
	blob := make([]byte, blobLen)
	if _, err := io.ReadFull(r, blob); err != nil {
		return nil, fmt.Errorf("read name blob: %w", err)
	}

	csr.ValuesHot = make([]CSREdgeHot, numValues)
	csr.ValuesCold = make([]CSREdgeCold, numValues)
	off := uint32(0)
	for i := 0; i < numValues; i++ {
		csr.ValuesHot[i] = CSREdgeHot{Target: targets[i], Weight: weights[i]}
		csr.ValuesCold[i] = CSREdgeCold{
			Name:     string(blob[off : off+nameLens[i]]),
			From:     froms[i],
			To:       tos[i],
			PrevEdge: prevs[i],
			NextEdge: nexts[i],
		}
		off += nameLens[i]
	}

	expectedCRC := crcReader.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(f, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("CRC32 mismatch: stored=%08x computed=%08x", storedCRC, expectedCRC)
	}

	if err := validateCSR(csr.RowFwdPtr, csr.ColsFwd, hdr.NumNodes, uint32(numValues)); err != nil {
		return nil, fmt.Errorf("forward CSR invalid: %w", err)
	}
	if err := validateCSR(csr.RowBwdPtr, csr.ColsBwd, hdr.NumNodes, uint32(numValues)); err != nil {
		return nil, fmt.Errorf("backward CSR invalid: %w", err)
	}

	return csr, nil
}

// validateCSR checks row-pointer monotonicity and cols bounds.
func validateCSR(rowPtr, cols []uint32, numNodes, numValues uint32) error {
	if uint32(len(rowPtr)) != numNodes+1 {
		return fmt.Errorf("row pointer length %d != NumNodes+1 %d", len(rowPtr), numNodes+1)
	}
	if rowPtr[numNodes] != uint32(len(cols)) {
		return fmt.Errorf("cols length %d != rowPtr[NumNodes] %d", len(cols), rowPtr[numNodes])
	}
	for i := uint32(1); i <= numNodes; i++ {
		if rowPtr[i] < rowPtr[i-1] {
			return fmt.Errorf("row pointer not monotonic at %d: %d < %d", i, rowPtr[i], rowPtr[i-1])
		}
	}
	for i, c := range cols {
		if c >= numValues {
			return fmt.Errorf("cols[%d]=%d >= values length %d", i, c, numValues)
		}
	}
	return nil
}

// Zero-copy I/O helpers using unsafe.Slice.

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeFloat32Slice(w io.Writer, s []float32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeInt64Slice(w io.Writer, s []int64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func readUint32Slice(r io.Reader, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readFloat32Slice(r io.Reader, n int) ([]float32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]float32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readInt64Slice(r io.Reader, n int) ([]int64, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]int64, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

// CRC32 wrapping writer/reader.

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
