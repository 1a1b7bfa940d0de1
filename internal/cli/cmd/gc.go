package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/smoynes/talus/internal/cli"
	"github.com/smoynes/talus/internal/gc"
	"github.com/smoynes/talus/internal/log"
)

type gcDemo struct {
	fs *flag.FlagSet

	tableCap uint64
	blockMin uint64
	objects  uint64
}

var _ cli.Command = (*gcDemo)(nil)

// GC returns the command that demonstrates the garbage-collected object store: it builds a small
// object graph, drops half of it, runs one collection cycle, and reports what survived.
func GC() *gcDemo {
	g := &gcDemo{
		fs: flag.NewFlagSet("gc", flag.ExitOnError),
	}

	g.fs.Uint64Var(&g.tableCap, "table-cap", 64, "cells per address table")
	g.fs.Uint64Var(&g.blockMin, "block-bytes", 4096, "minimum bytes per memory block")
	g.fs.Uint64Var(&g.objects, "objects", 8, "number of objects to allocate off the root")

	return g
}

func (g *gcDemo) FlagSet() *cli.FlagSet {
	return g.fs
}

func (*gcDemo) Description() string {
	return "demonstrate the garbage-collected object store"
}

func (g *gcDemo) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `gc [options]

Allocate a small object graph hanging off a single root, drop half of it, run one collection
cycle, and report what the store looks like before and after.`)

	return err
}

func (g *gcDemo) Run(_ context.Context, _ []string, out io.Writer, logger *log.Logger) int {
	store := gc.New(uint64(time.Now().UnixNano()), g.tableCap, g.blockMin, gc.WithLogger(logger))

	root, err := store.MallocRoot(g.objects, 0)
	if err != nil {
		fmt.Fprintln(out, "new root:", err)
		return 1
	}

	rootVAddr, err := store.GetRootVAddr(root)
	if err != nil {
		fmt.Fprintln(out, "root vaddr:", err)
		return 1
	}

	for i := uint64(0); i < g.objects; i++ {
		v, err := store.MallocObject(1, 8)
		if err != nil {
			fmt.Fprintln(out, "malloc object:", err)
			return 1
		}

		rootObj, err := store.GetWrite(rootVAddr)
		if err != nil {
			fmt.Fprintln(out, "get root:", err)
			return 1
		}

		// Only keep every other object reachable; the rest become garbage.
		if i%2 == 0 {
			_ = rootObj.SetRef(i, v)
		}

		store.UnlockWrite(rootVAddr)
	}

	fmt.Fprintln(out, "before collection:")
	fmt.Fprint(out, store.DebugString())

	store.Collect()
	store.TryFullShift()

	fmt.Fprintln(out, "after collection:")
	fmt.Fprint(out, store.DebugString())

	return 0
}
