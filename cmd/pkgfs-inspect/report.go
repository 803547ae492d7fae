// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/pkgfs/pkgfs/image"
	"github.com/pkgfs/pkgfs/lib/imagehash"
)

var reportMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// cmdReport renders a self-contained HTML audit report: the image's
// FSINFO metadata (description rendered as markdown), its directory
// tree, the block-level segment map, and the audit reachability
// totals.
func (ins *inspector) cmdReport(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: report <out.html>")
	}
	outPath := args[0]

	fsinfo, err := ins.engine.GetInodeByID(image.FSInfoID)
	if err != nil {
		return fmt.Errorf("reading FSINFO: %w", err)
	}

	var descriptionHTML bytes.Buffer
	if err := reportMarkdown.Convert([]byte(fsinfo.AppDescription), &descriptionHTML); err != nil {
		return fmt.Errorf("rendering description: %w", err)
	}

	var tree strings.Builder
	if err := ins.writeTreeHTML(&tree, image.RootID, 0); err != nil {
		return fmt.Errorf("walking directory tree: %w", err)
	}

	report, err := ins.engine.Audit()
	if err != nil {
		return fmt.Errorf("running audit: %w", err)
	}

	digest, err := imagehash.HashImage(ins.path)
	if err != nil {
		return fmt.Errorf("hashing image: %w", err)
	}

	var segments strings.Builder
	size := ins.engine.Size()
	for pos := int64(0); pos < size; pos += image.BSIZE {
		tag, err := ins.engine.BlockTag(pos)
		if err != nil {
			return err
		}
		segments.WriteByte(tag.Char())
		if (pos/image.BSIZE+1)%64 == 0 {
			segments.WriteByte('\n')
		}
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, reportTemplateHead,
		html.EscapeString(fsinfo.AppName),
		html.EscapeString(fsinfo.AppName),
		html.EscapeString(fsinfo.AppVersion),
		html.EscapeString(fsinfo.AppAuthor),
		imagehash.FormatDigest(digest),
	)
	page.WriteString(descriptionHTML.String())
	fmt.Fprintf(&page, reportTemplateStats,
		size, len(report.HeaderBlocks), len(report.DataBlocks))
	page.WriteString("<h2>Directory tree</h2>\n<pre>\n")
	page.WriteString(html.EscapeString(tree.String()))
	page.WriteString("</pre>\n<h2>Segment map</h2>\n<pre>\n")
	page.WriteString(html.EscapeString(segments.String()))
	page.WriteString("</pre>\n</body>\n</html>\n")

	if err := os.WriteFile(outPath, page.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing report %s: %w", outPath, err)
	}
	fmt.Fprintf(ins.out, "wrote %s\n", outPath)
	return nil
}

func (ins *inspector) writeTreeHTML(w *strings.Builder, dirID uint16, depth int) error {
	children, err := ins.engine.GetChildrenOfDirectory(dirID)
	if err != nil {
		return err
	}
	for _, child := range children {
		fmt.Fprintf(w, "%s%s (%s, id=%d)\n", strings.Repeat("  ", depth), child.Name, child.Tag.String(), child.ID)
		if child.Tag == image.TagDirectory {
			if err := ins.writeTreeHTML(w, child.ID, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

const reportTemplateHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: -apple-system, sans-serif; max-width: 60rem; margin: 2rem auto; color: #222; }
pre { background: #f4f4f4; padding: 1rem; overflow-x: auto; }
h2 { border-bottom: 1px solid #ccc; padding-bottom: 0.25rem; }
.meta { color: #555; font-size: 0.9rem; }
</style>
</head>
<body>
<h1>%s</h1>
<p class="meta">version %s &middot; author %s &middot; digest %s</p>
`

const reportTemplateStats = `<h2>Image</h2>
<p>%d bytes, %d header blocks reachable, %d data blocks reachable.</p>
`
