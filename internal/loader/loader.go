// Package loader reads warehouse instances and solutions from disk.
//
// Two instance layouts are understood:
//
//   - a directory holding one text file per attribute (rack_adjacency_matrix.txt,
//     rack_capacity.txt, product_circuit.txt, aisle_racks.txt, orders.txt,
//     metadata.txt);
//   - a single YAML or JSON file holding a model.InstanceDoc.
//
// I/O failures wrap ErrIOFailure and bad content wraps ErrMalformed; nothing
// in this package terminates the process.
package loader

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"slotting/internal/model"
)

var (
	// ErrIOFailure wraps any failure to open or read an instance or solution file.
	ErrIOFailure = errors.New("io failure")
	// ErrMalformed wraps content that cannot be parsed.
	ErrMalformed = errors.New("malformed file")
)

// File names of the directory layout.
const (
	AdjacencyFile      = "rack_adjacency_matrix.txt"
	RackCapacityFile   = "rack_capacity.txt"
	ProductCircuitFile = "product_circuit.txt"
	AisleRacksFile     = "aisle_racks.txt"
	OrdersFile         = "orders.txt"
	MetadataFile       = "metadata.txt"
)

// MetadataKeys lists the metadata.txt values in file order.
var MetadataKeys = []string{
	"num_racks", "total_slots", "aeration_rate",
	"num_products", "num_circuits", "num_aisles", "num_orders",
}

// Load reads an instance from a directory or from a YAML/JSON file.
func Load(path string) (*model.Instance, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w: %w", path, ErrIOFailure, err)
	}
	if fi.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// LoadDir reads the directory text layout.
func LoadDir(dir string) (*model.Instance, error) {
	d := dirReader{dir: dir}
	adjacency, err := d.adjacency()
	if err != nil {
		return nil, err
	}
	rackCapacity, err := d.column(RackCapacityFile)
	if err != nil {
		return nil, err
	}
	productCircuit, err := d.column(ProductCircuitFile)
	if err != nil {
		return nil, err
	}
	aisles, err := d.countedRows(AisleRacksFile)
	if err != nil {
		return nil, err
	}
	orders, err := d.countedRows(OrdersFile)
	if err != nil {
		return nil, err
	}
	metadata, err := d.metadata()
	if err != nil {
		return nil, err
	}
	inst, err := model.NewInstance(adjacency, rackCapacity, productCircuit, aisles, orders, metadata)
	if err != nil {
		return nil, fmt.Errorf("load dir %s: %w", dir, err)
	}
	return inst, nil
}

// LoadFile reads a model.InstanceDoc from a .yaml, .yml or .json file.
func LoadFile(path string) (*model.Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load file %s: %w: %w", path, ErrIOFailure, err)
	}
	var doc model.InstanceDoc
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &doc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("load file %s: %w: unsupported extension %q", path, ErrMalformed, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("load file %s: %w: %w", path, ErrMalformed, err)
	}
	inst, err := model.FromDoc(doc)
	if err != nil {
		return nil, fmt.Errorf("load file %s: %w", path, err)
	}
	return inst, nil
}

// WriteFile stores inst as YAML or JSON depending on the extension of path.
func WriteFile(path string, inst *model.Instance) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(inst.Doc(), "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(inst.Doc())
	default:
		return fmt.Errorf("write file %s: %w: unsupported extension %q", path, ErrMalformed, filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("write file %s: encode: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write file %s: %w: %w", path, ErrIOFailure, err)
	}
	return nil
}

type dirReader struct {
	dir string
}

// lines returns the trimmed, non-empty lines of a file, skipping "..." comment lines.
func (d dirReader) lines(name string) ([]string, error) {
	path := filepath.Join(d.dir, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", path, ErrIOFailure, err)
	}
	defer f.Close()
	out, err := readLines(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", path, ErrIOFailure, err)
	}
	return out, nil
}

func readLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var out []string
	for sc.Scan() {
		raw := sc.Text()
		if strings.HasPrefix(raw, "...") {
			continue
		}
		if l := strings.TrimSpace(raw); l != "" {
			out = append(out, l)
		}
	}
	return out, sc.Err()
}

func (d dirReader) malformed(name string, format string, args ...any) error {
	return fmt.Errorf("read %s: %w: %s", filepath.Join(d.dir, name), ErrMalformed, fmt.Sprintf(format, args...))
}

// adjacency: first line n, then n rows.
func (d dirReader) adjacency() ([][]int, error) {
	lines, err := d.lines(AdjacencyFile)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, d.malformed(AdjacencyFile, "empty file")
	}
	n, err := strconv.Atoi(lines[0])
	if err != nil || n < 0 {
		return nil, d.malformed(AdjacencyFile, "bad size line %q", lines[0])
	}
	if len(lines)-1 < n {
		return nil, d.malformed(AdjacencyFile, "declares %d rows but has %d", n, len(lines)-1)
	}
	m := make([][]int, n)
	for i := 0; i < n; i++ {
		row, err := parseInts(lines[i+1])
		if err != nil {
			return nil, d.malformed(AdjacencyFile, "row %d: %v", i, err)
		}
		m[i] = row
	}
	return m, nil
}

// column: header line, then one int per line.
func (d dirReader) column(name string) ([]int, error) {
	lines, err := d.lines(name)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, d.malformed(name, "missing header")
	}
	out := make([]int, 0, len(lines)-1)
	for i, l := range lines[1:] {
		v, err := strconv.Atoi(l)
		if err != nil {
			return nil, d.malformed(name, "line %d: %v", i+2, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// countedRows: header line, then "<count> <id>..." rows with the count dropped.
func (d dirReader) countedRows(name string) ([][]int, error) {
	lines, err := d.lines(name)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, d.malformed(name, "missing header")
	}
	out := make([][]int, 0, len(lines)-1)
	for i, l := range lines[1:] {
		vals, err := parseInts(l)
		if err != nil {
			return nil, d.malformed(name, "line %d: %v", i+2, err)
		}
		if len(vals) == 0 {
			return nil, d.malformed(name, "line %d: missing count", i+2)
		}
		out = append(out, vals[1:])
	}
	return out, nil
}

func (d dirReader) metadata() (map[string]float64, error) {
	lines, err := d.lines(MetadataFile)
	if err != nil {
		return nil, err
	}
	if len(lines) < len(MetadataKeys) {
		return nil, d.malformed(MetadataFile, "want %d values, got %d", len(MetadataKeys), len(lines))
	}
	out := make(map[string]float64, len(MetadataKeys))
	for i, k := range MetadataKeys {
		v, err := strconv.ParseFloat(lines[i], 64)
		if err != nil {
			return nil, d.malformed(MetadataFile, "%s: %v", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func parseInts(line string) ([]int, error) {
	fields := strings.Fields(line)
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
