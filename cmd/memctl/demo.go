package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/alloc"
)

var demoBase int

func init() {
	cmd := newDemoCmd()
	cmd.Flags().IntVar(&demoBase, "base", 1<<20, "Base chunk size in bytes")
	rootCmd.AddCommand(cmd)
}

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Walk through the allocator lifecycle step by step",
		Long: `The demo command runs a scripted sequence covering the whole
lifecycle: steady-state churn, growth past the base chunk, a shrink that
is blocked by a live block, and the shrink that succeeds once the block
is freed. Use --verbose to dump the free list after each step.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo()
		},
	}
}

func runDemo() error {
	a, err := alloc.New(demoBase, nil)
	if err != nil {
		return fmt.Errorf("failed to create allocator: %w", err)
	}
	defer a.Clear()

	step := func(title string) {
		printInfo("== %s ==\n", title)
		printInfo("  total=%d free=%d occupied=%d\n", a.TotalSize(), a.FreeSize(), a.Occupied())
		printVerbose("%s", a.Stats())
	}
	step(fmt.Sprintf("created with a %d-byte base chunk", demoBase))

	// Steady-state churn: repeated allocate/free pairs reuse the same hole and
	// must not grow the footprint.
	for i := 0; i < 10000; i++ {
		block := a.Allocate(1000)
		if block == nil {
			return fmt.Errorf("churn allocation %d failed", i)
		}
		if !a.Free(block) {
			return fmt.Errorf("churn free %d failed", i)
		}
	}
	step("after 10000 allocate/free cycles")

	if !a.Resize(demoBase + 10000) {
		return fmt.Errorf("grow to %d failed", demoBase+10000)
	}
	step("grown by a 10000-byte chunk")

	big := a.Allocate(1024 * 980)
	if big == nil {
		return fmt.Errorf("large allocation failed")
	}
	step("allocated a 980 KiB block")

	// The big block pins its chunk, so this shrink can only release the spare
	// 10000-byte chunk and reports failure.
	ok := a.Resize(5 * 1024)
	step(fmt.Sprintf("shrink to 5 KiB while occupied (reached=%t)", ok))

	if !a.Free(big) {
		return fmt.Errorf("free of the large block failed")
	}
	if !a.Resize(5 * 1024) {
		return fmt.Errorf("shrink after free failed")
	}
	step("freed the block and shrunk")

	a.Clear()
	step("cleared")

	if jsonOut {
		return printJSON(a.Metrics())
	}
	return nil
}
