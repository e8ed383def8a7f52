package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/chunk"
)

var (
	benchBase     int
	benchIters    int
	benchMinSize  int
	benchMaxSize  int
	benchLiveSet  int
	benchSeed     int64
	benchProvider string
)

func init() {
	cmd := newBenchCmd()
	cmd.Flags().IntVar(&benchBase, "base", 4<<20, "Base chunk size in bytes")
	cmd.Flags().IntVar(&benchIters, "iters", 1_000_000, "Number of operations")
	cmd.Flags().IntVar(&benchMinSize, "min-size", 64, "Smallest allocation size")
	cmd.Flags().IntVar(&benchMaxSize, "max-size", 8192, "Largest allocation size")
	cmd.Flags().IntVar(&benchLiveSet, "live", 256, "Maximum outstanding blocks")
	cmd.Flags().Int64Var(&benchSeed, "seed", 1, "Workload random seed")
	cmd.Flags().StringVar(&benchProvider, "provider", "heap", "Chunk provider: heap or mmap")
	rootCmd.AddCommand(cmd)
}

func newBenchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Run a randomized allocation workload and report counters",
		Long: `The bench command churns the allocator with a random mix of
allocations and frees while keeping a bounded set of live blocks, then
reports throughput and the operation counters.

Example:
  memctl bench --iters 5000000 --max-size 16384
  memctl bench --provider mmap --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench()
		},
	}
}

type benchReport struct {
	Iterations int
	Elapsed    string
	OpsPerSec  float64

	TotalSize int
	FreeSize  int
	Metrics   alloc.Metrics
}

func runBench() error {
	if benchMinSize <= 0 || benchMaxSize < benchMinSize {
		return fmt.Errorf("invalid size range [%d, %d]", benchMinSize, benchMaxSize)
	}

	var provider chunk.Provider
	switch benchProvider {
	case "heap":
		provider = chunk.NewHeap()
	case "mmap":
		provider = chunk.NewMmap()
	default:
		return fmt.Errorf("unknown provider %q (want heap or mmap)", benchProvider)
	}

	a, err := alloc.New(benchBase, &alloc.Options{Provider: provider})
	if err != nil {
		return fmt.Errorf("failed to create allocator: %w", err)
	}
	defer a.Clear()

	printVerbose("Running %d operations over a %d-byte base chunk (%s provider)\n",
		benchIters, benchBase, benchProvider)

	rng := rand.New(rand.NewSource(benchSeed))
	live := make([][]byte, 0, benchLiveSet)

	start := time.Now()
	for i := 0; i < benchIters; i++ {
		if len(live) < benchLiveSet && (len(live) == 0 || rng.Intn(2) == 0) {
			size := benchMinSize + rng.Intn(benchMaxSize-benchMinSize+1)
			if block := a.Allocate(size); block != nil {
				live = append(live, block)
			}
			continue
		}
		j := rng.Intn(len(live))
		a.Free(live[j])
		live[j] = live[len(live)-1]
		live = live[:len(live)-1]
	}
	elapsed := time.Since(start)

	report := benchReport{
		Iterations: benchIters,
		Elapsed:    elapsed.String(),
		OpsPerSec:  float64(benchIters) / elapsed.Seconds(),
		TotalSize:  a.TotalSize(),
		FreeSize:   a.FreeSize(),
		Metrics:    a.Metrics(),
	}

	if jsonOut {
		return printJSON(report)
	}

	p := message.NewPrinter(language.English)
	m := report.Metrics
	printInfo("Bench: %s ops in %s (%s ops/sec)\n\n",
		p.Sprintf("%d", report.Iterations), report.Elapsed,
		p.Sprintf("%.0f", report.OpsPerSec))
	printInfo("Footprint:\n")
	printInfo("  Total: %s bytes\n", p.Sprintf("%d", report.TotalSize))
	printInfo("  Free: %s bytes\n\n", p.Sprintf("%d", report.FreeSize))
	printInfo("Counters:\n")
	printInfo("  Allocations: %s (%s splits)\n",
		p.Sprintf("%d", m.AllocCalls), p.Sprintf("%d", m.SplitCount))
	printInfo("  Frees: %s (%s forward, %s backward coalesces)\n",
		p.Sprintf("%d", m.FreeCalls),
		p.Sprintf("%d", m.CoalesceForward), p.Sprintf("%d", m.CoalesceBackward))
	printInfo("  Chunks: %s acquired (%s bytes), %s released (%s bytes)\n",
		p.Sprintf("%d", m.GrowCalls), p.Sprintf("%d", m.GrowBytes),
		p.Sprintf("%d", m.ReleaseCalls), p.Sprintf("%d", m.ReleaseBytes))
	printInfo("  Bytes: %s allocated, %s freed\n",
		p.Sprintf("%d", m.BytesAllocated), p.Sprintf("%d", m.BytesFreed))
	return nil
}
