package matrix

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	log "github.com/golang/glog"
)

// Serialize writes the shape "rows,cols" followed by one
// "row,col,value" line per positive element.
func (m *Float64Matrix) Serialize(w io.Writer) error {
	out := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(out, "%d,%d\n", m.nrow, m.ncol); err != nil {
		return err
	}
	for r := 0; r < m.nrow; r++ {
		for c, val := range m.Row(r) {
			if val > 0 { // only write out positive values
				if _, err := fmt.Fprintf(out, "%d,%d,%e\n", r, c, val); err != nil {
					return err
				}
			}
		}
	}
	return out.Flush()
}

// Deserialize reads a matrix written by Serialize.
func Deserialize(r io.Reader) (*Float64Matrix, error) {
	var m *Float64Matrix
	lineIdx := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		txt := scanner.Text()
		if lineIdx == 0 {
			shape := strings.Split(txt, ",")
			if len(shape) != 2 {
				return nil, fmt.Errorf("%w: shape not found: %s", ErrBadShape, txt)
			}
			row, err := strconv.Atoi(shape[0])
			if err != nil {
				return nil, err
			}
			col, err := strconv.Atoi(shape[1])
			if err != nil {
				return nil, err
			}
			if m, err = NewFloat64Matrix(row, col); err != nil {
				return nil, err
			}
			lineIdx += 1
			continue
		}

		value := strings.Split(txt, ",")
		if len(value) != 3 {
			log.Infof("data corrupted, row %d, data %s", lineIdx, txt)
			lineIdx += 1
			continue
		}
		ridx, err := strconv.Atoi(value[0])
		if err != nil {
			return nil, err
		}
		cidx, err := strconv.Atoi(value[1])
		if err != nil {
			return nil, err
		}
		val, err := strconv.ParseFloat(value[2], 64)
		if err != nil {
			return nil, err
		}
		if ridx < 0 || ridx >= m.nrow || cidx < 0 || cidx >= m.ncol {
			return nil, fmt.Errorf("%w: %s at line %d", ErrIndexOutOfRange, txt, lineIdx)
		}
		m.Set(ridx, cidx, val)

		lineIdx += 1
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: empty input", ErrBadShape)
	}
	return m, nil
}
