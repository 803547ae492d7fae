// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/quick"
	"github.com/dustin/go-humanize"

	"github.com/pkgfs/pkgfs/image"
)

func (ins *inspector) cmdChildren(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: children <id>")
	}
	id, err := resolveID(args[0])
	if err != nil {
		return err
	}

	children, err := ins.engine.GetChildrenOfDirectory(id)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		fmt.Fprintln(ins.out, "(empty)")
		return nil
	}
	for _, child := range children {
		fmt.Fprintf(ins.out, "%6d  %-9s %s\n", child.ID, child.Tag.String(), child.Name)
	}
	return nil
}

// cmdSegments prints the block-level segment map: one character per
// block, rows of 64 characters (64 blocks per row), matching the classic
// appinspect character-map view.
func (ins *inspector) cmdSegments(args []string) error {
	const perRow = 64
	size := ins.engine.Size()

	var row strings.Builder
	count := 0
	for pos := int64(0); pos < size; pos += image.BSIZE {
		tag, err := ins.engine.BlockTag(pos)
		if err != nil {
			return fmt.Errorf("reading block at %d: %w", pos, err)
		}
		row.WriteByte(tag.Char())
		count++
		if count%perRow == 0 {
			fmt.Fprintln(ins.out, row.String())
			row.Reset()
		}
	}
	if row.Len() > 0 {
		fmt.Fprintln(ins.out, row.String())
	}
	fmt.Fprintf(ins.out, "%s total, %d blocks\n", humanize.Bytes(uint64(size)), count)
	return nil
}

func (ins *inspector) cmdClean(args []string) error {
	counters, err := ins.engine.Repair()
	if err != nil {
		return err
	}
	fmt.Fprintf(ins.out, "cleaned temporary:  %d\n", counters.CleanedTemporary)
	fmt.Fprintf(ins.out, "cleaned invalid:    %d\n", counters.CleanedInvalid)
	fmt.Fprintf(ins.out, "cleaned files:      %d\n", counters.CleanedFiles)
	fmt.Fprintf(ins.out, "cleaned directory:  %d\n", counters.CleanedDirectory)
	fmt.Fprintf(ins.out, "orphaned (left):    %d\n", counters.Orphaned)
	fmt.Fprintf(ins.out, "failed:             %d\n", counters.Failed)
	return nil
}

// cmdShow hex dumps a single block, addressed either by inode id (a
// bare decimal number) or by raw block position ("pos@N").
func (ins *inspector) cmdShow(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: show <id|pos@N>")
	}

	var pos int64
	if strings.HasPrefix(args[0], "pos@") {
		value, err := strconv.ParseInt(strings.TrimPrefix(args[0], "pos@"), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid block position %q: %w", args[0], err)
		}
		pos = value
	} else {
		id, err := resolveID(args[0])
		if err != nil {
			return err
		}
		p, err := ins.engine.GetInodePositionByID(id)
		if err != nil {
			return err
		}
		pos = p
	}

	buf, err := ins.engine.ReadBlock(pos)
	if err != nil {
		return err
	}
	fmt.Fprint(ins.out, hexDump(buf, pos))
	return nil
}

// hexDump renders buf as 16-byte rows: offset, hex bytes, ASCII
// column, in the traditional hexdump -C layout.
func hexDump(buf []byte, base int64) string {
	var b strings.Builder
	for offset := 0; offset < len(buf); offset += 16 {
		end := offset + 16
		if end > len(buf) {
			end = len(buf)
		}
		chunk := buf[offset:end]

		fmt.Fprintf(&b, "%08x  ", base+int64(offset))
		for index := 0; index < 16; index++ {
			if index < len(chunk) {
				fmt.Fprintf(&b, "%02x ", chunk[index])
			} else {
				b.WriteString("   ")
			}
			if index == 7 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(" |")
		for _, c := range chunk {
			if c >= 0x20 && c < 0x7f {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("|\n")
	}
	return b.String()
}

// cmdCat prints a file's content, syntax-highlighted according to its
// name's extension when chroma recognizes it.
func (ins *inspector) cmdCat(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cat <path>")
	}

	node, err := ins.engine.Resolve(args[0])
	if err != nil {
		return err
	}
	if node.Tag != image.TagFileInfo {
		return fmt.Errorf("%s is a %s, not a file", args[0], node.Tag.String())
	}

	data, err := ins.engine.ReadFileData(node.ID, 0, int(node.FileLength))
	if err != nil {
		return err
	}

	lexer := lexers.Match(node.Name)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	if lexer == lexers.Fallback {
		ins.out.Write(data)
		return nil
	}

	style := "monokai"
	if err := quick.Highlight(ins.out, string(data), lexer.Config().Name, "terminal256", style); err != nil {
		ins.out.Write(data)
	}
	return nil
}
