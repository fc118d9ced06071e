package output

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/yairfalse/cfgwatch/internal/evidence"
	"github.com/yairfalse/cfgwatch/internal/storage"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// WriteInterfaces writes the interface table
func WriteInterfaces(w io.Writer, rows []evidence.Interface) error {
	tw := newTabWriter(w)
	fmt.Fprintf(tw, "Interface\tIP\tStatus\n")
	fmt.Fprintf(tw, "---------\t--\t------\n")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.IP, r.Status)
	}
	return tw.Flush()
}

// WriteNeighbors writes the OSPF neighbor table
func WriteNeighbors(w io.Writer, rows []evidence.Neighbor) error {
	tw := newTabWriter(w)
	fmt.Fprintf(tw, "Neighbor ID\tState\tAddress\tInterface\n")
	fmt.Fprintf(tw, "-----------\t-----\t-------\t---------\n")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.State, r.Address, r.Interface)
	}
	return tw.Flush()
}

// WriteArtifacts lists artifacts as a table, json or yaml
func WriteArtifacts(w io.Writer, format string, artifacts []storage.ArtifactInfo) error {
	format, err := ValidateFormat(format)
	if err != nil {
		return err
	}
	if format != FormatTable {
		if artifacts == nil {
			artifacts = []storage.ArtifactInfo{}
		}
		return writeStructured(w, format, artifacts)
	}

	if len(artifacts) == 0 {
		fmt.Fprintln(w, "No artifacts found.")
		return nil
	}

	tw := newTabWriter(w)
	fmt.Fprintf(tw, "Device\tKind\tTimestamp\tSize\tFile\n")
	fmt.Fprintf(tw, "------\t----\t---------\t----\t----\n")
	for _, a := range artifacts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			a.Device,
			a.Kind,
			a.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			formatSize(a.FileSize),
			filepath.Base(a.FilePath),
		)
	}
	return tw.Flush()
}

// WriteManifest lists manifest entries as a table, json or yaml
func WriteManifest(w io.Writer, format string, entries []storage.ManifestEntry) error {
	format, err := ValidateFormat(format)
	if err != nil {
		return err
	}
	if format != FormatTable {
		if entries == nil {
			entries = []storage.ManifestEntry{}
		}
		return writeStructured(w, format, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "Manifest is empty.")
		return nil
	}

	tw := newTabWriter(w)
	fmt.Fprintf(tw, "Timestamp\tKind\tChanges\tSHA256\tFile\n")
	fmt.Fprintf(tw, "---------\t----\t-------\t------\t----\n")
	for _, e := range entries {
		changes := ""
		if e.Kind == storage.KindConfig {
			changes = fmt.Sprintf("+%d -%d", e.Added, e.Removed)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			e.Kind,
			changes,
			shortHash(e.SHA256),
			e.File,
		)
	}
	return tw.Flush()
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
