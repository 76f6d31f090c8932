package graph

import (
	"encoding/csv"
	"io"
	"runtime"
	"strconv"
	"sync"
)

// ExportNodesCSV writes one row per node: dense_id, osm_id, lat, lon.
// No header. Records are formatted in parallel chunks; the write itself is
// sequential so row order follows dense IDs.
func ExportNodesCSV(w io.Writer, nodes []Node) error {
	records := make([][]string, len(nodes))

	workers := runtime.NumCPU()
	if workers > len(nodes) {
		workers = len(nodes)
	}
	if workers > 0 {
		chunk := (len(nodes) + workers - 1) / workers
		var wg sync.WaitGroup
		for start := 0; start < len(nodes); start += chunk {
			end := start + chunk
			if end > len(nodes) {
				end = len(nodes)
			}
			wg.Add(1)
			go func(start, end int) {
				defer wg.Done()
				for i := start; i < end; i++ {
					n := &nodes[i]
					records[i] = []string{
						strconv.FormatUint(uint64(n.DenseID), 10),
						strconv.FormatInt(n.OSMID, 10),
						strconv.FormatFloat(float64(n.Lat), 'f', -1, 32),
						strconv.FormatFloat(float64(n.Lon), 'f', -1, 32),
					}
				}
			}(start, end)
		}
		wg.Wait()
	}

	cw := csv.NewWriter(w)
	for _, record := range records {
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
