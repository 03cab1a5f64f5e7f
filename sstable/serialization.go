package sstable

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	log "github.com/golang/glog"
)

// Serialize writes the table as text. The first line holds the shape
// "numTypes,numTopics", every following line one nonzero cell
// "type,topic,count" in row order.
func (tab *TypeTopicTable) Serialize(w io.Writer) error {
	out := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(out, "%d,%d\n", len(tab.rows), tab.numTopics); err != nil {
		return err
	}

	for typ := range tab.rows {
		var err error
		tab.ForEach(typ, func(topic, count int) {
			if err == nil {
				_, err = fmt.Fprintf(out, "%d,%d,%d\n", typ, topic, count)
			}
		})
		if err != nil {
			return err
		}
	}
	return out.Flush()
}

// Deserialize reads a table written by Serialize. typeTotals sizes the
// rows exactly as NewTypeTopicTable does; a shape or count that does
// not agree with it is an error. A nil typeTotals takes the totals from
// the cells themselves.
func Deserialize(r io.Reader, typeTotals []int) (*TypeTopicTable, error) {
	var (
		numTypes, numTopics int
		cells               [][3]int
	)
	lineIdx := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		txt := scanner.Text()
		if lineIdx == 0 {
			shape := strings.Split(txt, ",")
			if len(shape) != 2 {
				return nil, fmt.Errorf("table corrupted, shape not found: %s", txt)
			}
			var err error
			if numTypes, err = strconv.Atoi(shape[0]); err != nil {
				return nil, err
			}
			if numTopics, err = strconv.Atoi(shape[1]); err != nil {
				return nil, err
			}
			if typeTotals != nil && numTypes != len(typeTotals) {
				return nil, fmt.Errorf("%w: %d types, corpus has %d",
					ErrShapeMismatch, numTypes, len(typeTotals))
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
		var cell [3]int
		for i, v := range value {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, err
			}
			cell[i] = n
		}
		typ, topic, count := cell[0], cell[1], cell[2]
		if typ < 0 || typ >= numTypes || topic < 0 || topic >= numTopics || count <= 0 {
			return nil, fmt.Errorf("%w: bad cell %q at line %d", ErrShapeMismatch, txt, lineIdx)
		}
		cells = append(cells, cell)

		lineIdx += 1
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if lineIdx == 0 {
		return nil, fmt.Errorf("table corrupted, empty input")
	}

	if typeTotals == nil {
		typeTotals = make([]int, numTypes)
		for _, cell := range cells {
			typeTotals[cell[0]] += cell[2]
		}
	}
	tab, err := NewTypeTopicTable(numTopics, typeTotals)
	if err != nil {
		return nil, err
	}
	for _, cell := range cells {
		tab.add(cell[0], cell[1], cell[2])
	}
	if err := tab.Validate(); err != nil {
		return nil, err
	}
	return tab, nil
}
