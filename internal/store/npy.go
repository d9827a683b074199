package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Minimal NPY v1.0 reader/writer for 2-D float32 arrays. Feature files
// written here load with numpy and vice versa, which keeps per-identity
// embedding files portable across tooling.

var npyMagic = []byte("\x93NUMPY")

var npyShapeRe = regexp.MustCompile(`'shape':\s*\((\d+),\s*(\d+),?\)`)

// writeNPY writes rows (each of length dim) as a little-endian float32
// array of shape (len(rows), dim).
func writeNPY(path string, rows [][]float32, dim int) error {
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", len(rows), dim)
	// Total header (magic + version + length field + text) padded to 64 bytes,
	// newline-terminated, per the NPY v1.0 format.
	base := len(npyMagic) + 2 + 2
	pad := 64 - (base+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header = header + strings.Repeat(" ", pad) + "\n"

	buf := make([]byte, 0, base+len(header)+4*len(rows)*dim)
	buf = append(buf, npyMagic...)
	buf = append(buf, 1, 0) // version 1.0
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(header)))
	buf = append(buf, header...)

	for _, row := range rows {
		for _, v := range row {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("write npy: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename npy: %w", err)
	}
	return nil
}

// readNPY reads a 2-D little-endian float32 array.
func readNPY(path string) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 10 || string(data[:6]) != string(npyMagic) {
		return nil, fmt.Errorf("read npy %s: bad magic", path)
	}
	if data[6] != 1 {
		return nil, fmt.Errorf("read npy %s: unsupported version %d.%d", path, data[6], data[7])
	}
	headerLen := int(binary.LittleEndian.Uint16(data[8:10]))
	if len(data) < 10+headerLen {
		return nil, fmt.Errorf("read npy %s: truncated header", path)
	}
	header := string(data[10 : 10+headerLen])
	if !strings.Contains(header, "'<f4'") {
		return nil, fmt.Errorf("read npy %s: unsupported dtype", path)
	}
	if strings.Contains(header, "'fortran_order': True") {
		return nil, fmt.Errorf("read npy %s: fortran order unsupported", path)
	}

	m := npyShapeRe.FindStringSubmatch(header)
	if m == nil {
		return nil, fmt.Errorf("read npy %s: unsupported shape in header %q", path, header)
	}
	n, _ := strconv.Atoi(m[1])
	dim, _ := strconv.Atoi(m[2])

	body := data[10+headerLen:]
	if len(body) < 4*n*dim {
		return nil, fmt.Errorf("read npy %s: truncated body", path)
	}

	rows := make([][]float32, n)
	off := 0
	for i := 0; i < n; i++ {
		row := make([]float32, dim)
		for j := 0; j < dim; j++ {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(body[off : off+4]))
			off += 4
		}
		rows[i] = row
	}
	return rows, nil
}
