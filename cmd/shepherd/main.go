package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tomerab1/shepherd/pkg/api"
	"github.com/tomerab1/shepherd/pkg/ch"
	"github.com/tomerab1/shepherd/pkg/graph"
	osmparser "github.com/tomerab1/shepherd/pkg/osm"
	"github.com/tomerab1/shepherd/pkg/routing"
)

func main() {
	snapshot := flag.String("snapshot", "graph.bin", "Snapshot file: written after preprocessing, loaded when no PBF is given")
	csvPath := flag.String("csv", "", "Optional CSV node export path (written during preprocessing)")
	addr := flag.String("addr", ":8091", "HTTP listen address")
	bbox := flag.String("bbox", "", "Bounding box filter: minLat,minLon,maxLat,maxLon")
	keepAll := flag.Bool("keep-all-components", false, "Skip largest-component filtering")
	flag.Parse()

	var csr *graph.CSRGraph
	var err error

	if flag.NArg() > 0 {
		csr, err = preprocess(flag.Arg(0), *snapshot, *csvPath, *bbox, !*keepAll)
	} else {
		log.Printf("Loading snapshot from %s...", *snapshot)
		csr, err = graph.ReadSnapshot(*snapshot)
	}
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Graph ready: %d nodes, %d values", csr.NumNodes(), len(csr.ValuesHot))

	engine := routing.NewEngine(csr)

	var shortcuts uint32
	for i := range csr.ValuesCold {
		if csr.ValuesCold[i].IsShortcut() {
			shortcuts++
		}
	}
	stats := api.StatsResponse{
		NumNodes:     csr.NumNodes(),
		NumEdges:     uint32(len(csr.FwdValueOf)),
		NumShortcuts: shortcuts / 2, // each shortcut is materialized in both views
	}

	srv := api.NewServer(api.DefaultConfig(*addr), api.NewHandlers(engine, stats))
	if err := api.ListenAndServe(srv); err != nil {
		log.Fatal(err)
	}
}

// preprocess runs the full pipeline: PBF → PreGraph → mutable graph →
// contraction → CSR snapshot on disk.
func preprocess(input, output, csvPath, bbox string, filterComponent bool) (*graph.CSRGraph, error) {
	start := time.Now()

	var opts osmparser.ParseOptions
	if bbox != "" {
		var minLat, minLon, maxLat, maxLon float64
		if _, err := fmt.Sscanf(bbox, "%f,%f,%f,%f", &minLat, &minLon, &maxLat, &maxLon); err != nil {
			return nil, fmt.Errorf("invalid bbox %q (expected minLat,minLon,maxLat,maxLon): %w", bbox, err)
		}
		opts.BBox = osmparser.BBox{MinLat: minLat, MaxLat: maxLat, MinLon: minLon, MaxLon: maxLon}
		log.Printf("Using bounding box filter: lat [%.4f, %.4f], lon [%.4f, %.4f]", minLat, maxLat, minLon, maxLon)
	}

	log.Printf("Parsing %s...", input)
	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	pre, err := osmparser.Parse(context.Background(), f, opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", input, err)
	}

	log.Println("Building graph...")
	g, err := graph.Build(pre)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	log.Printf("Graph: %d nodes, %d edges", g.NumNodes(), g.NumEdges())

	if filterComponent {
		nodes := graph.LargestComponent(g)
		log.Printf("Largest component: %d nodes (%.1f%%)", len(nodes),
			float64(len(nodes))/float64(g.NumNodes())*100)
		g = graph.FilterToComponent(g, nodes)
	}

	if csvPath != "" {
		log.Printf("Exporting nodes to %s...", csvPath)
		cf, err := os.Create(csvPath)
		if err != nil {
			return nil, fmt.Errorf("create csv: %w", err)
		}
		if err := graph.ExportNodesCSV(cf, g.Nodes); err != nil {
			cf.Close()
			return nil, fmt.Errorf("write csv: %w", err)
		}
		if err := cf.Close(); err != nil {
			return nil, fmt.Errorf("close csv: %w", err)
		}
	}

	log.Println("Running Contraction Hierarchies...")
	overlay := ch.Contract(g)

	log.Println("Freezing CSR snapshot...")
	csr := graph.Freeze(overlay)

	log.Printf("Writing snapshot to %s...", output)
	if err := graph.WriteSnapshot(output, csr); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	if info, err := os.Stat(output); err == nil {
		log.Printf("Done in %s. Output: %s (%.1f MB)",
			time.Since(start).Round(time.Second), output, float64(info.Size())/(1024*1024))
	}

	return csr, nil
}
