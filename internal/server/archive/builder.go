// Package archive assembles fetched media into zip archives and splits large
// media sets into size-capped batches.
package archive

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/dmitrijs2005/eventsnap/internal/common"
	"github.com/dmitrijs2005/eventsnap/internal/server/fetcher"
	"github.com/dmitrijs2005/eventsnap/internal/server/models"
)

// ManifestName is the entry listing the items that could not be included.
// The name is reserved: a media entry that would take it gets a "_" prefix.
const ManifestName = "FAILED_DOWNLOADS.txt"

// Result is a finished archive held in memory.
type Result struct {
	Data     []byte
	Included int
	Failed   int
}

// Build writes every successful outcome, in input order, as one entry and
// appends a manifest when at least one outcome failed. It fails with
// common.ErrNoSuccessfulItems when nothing succeeded, and with
// common.ErrTotalSizeExceeded when maxBytes > 0 and the accepted media sum
// past it. The zip writer is closed before Build returns.
func Build(outcomes []fetcher.Outcome, maxBytes int64) (*Result, error) {
	included, failed := fetcher.Count(outcomes)
	if included == 0 {
		return nil, common.ErrNoSuccessfulItems
	}

	if maxBytes > 0 {
		var total int64
		for _, o := range outcomes {
			if o.OK() {
				total += o.SizeBytes
			}
		}
		if total > maxBytes {
			return nil, fmt.Errorf("%w: %d > %d bytes", common.ErrTotalSizeExceeded, total, maxBytes)
		}
	}

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	for _, o := range outcomes {
		if !o.OK() {
			continue
		}
		if err := writeEntry(zw, mediaEntryName(o.Item), o.Data); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("%w: %w", common.ErrAssembly, err)
		}
	}

	if failed > 0 {
		if err := writeEntry(zw, ManifestName, Manifest(outcomes)); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("%w: %w", common.ErrAssembly, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrAssembly, err)
	}

	observeBuild(buf.Len(), included, failed)

	return &Result{Data: buf.Bytes(), Included: included, Failed: failed}, nil
}

func mediaEntryName(item models.MediaItemRef) string {
	name := EntryName(item.DisplayName, item.ID)
	if strings.EqualFold(name, ManifestName) {
		return "_" + name
	}
	return name
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Manifest renders the failed outcomes, in order, one per line.
func Manifest(outcomes []fetcher.Outcome) []byte {
	var b strings.Builder
	b.WriteString("The following items could not be included in this archive:\n\n")
	for _, o := range outcomes {
		if o.OK() {
			continue
		}
		name := o.Item.DisplayName
		if name == "" {
			name = o.Item.ID
		}
		fmt.Fprintf(&b, "%s: %s\n", name, o.Reason)
	}
	return []byte(b.String())
}
