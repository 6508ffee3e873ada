package diag

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/qieqieplus/meeting-client/pkg/log"
)

var ErrNoLogs = errors.New("diag: no log files to export")

// SnapshotFunc returns data to include in the report as JSON.
type SnapshotFunc func() (any, error)

// Reporter bundles the rotating log files into a zip archive.
type Reporter struct {
	// LogFile is the active log file; rotated backups next to it are
	// included as well.
	LogFile   string
	ExportDir string
	// Snapshots are written into the archive as <name>.json.
	Snapshots map[string]SnapshotFunc

	now func() time.Time
}

func NewReporter(logFile, exportDir string) *Reporter {
	return &Reporter{
		LogFile:   logFile,
		ExportDir: exportDir,
		Snapshots: make(map[string]SnapshotFunc),
		now:       time.Now,
	}
}

// AddSnapshot registers fn to be serialised into name.json on every export.
func (r *Reporter) AddSnapshot(name string, fn SnapshotFunc) {
	r.Snapshots[name] = fn
}

// Export writes a timestamped zip into ExportDir and returns its path.
func (r *Reporter) Export() (string, error) {
	files, err := r.logFiles()
	if err != nil {
		return "", err
	}
	if len(files) == 0 && len(r.Snapshots) == 0 {
		return "", ErrNoLogs
	}

	if err := os.MkdirAll(r.ExportDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}

	name := fmt.Sprintf("meeting-client-logs-%s.zip", r.now().UTC().Format("20060102-150405"))
	path := filepath.Join(r.ExportDir, name)
	tmp := path + ".tmp"

	if err := r.write(tmp, files); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize report: %w", err)
	}

	log.WithFields(log.Fields{"path": path, "files": len(files)}).Info("Exported diagnostic logs")
	return path, nil
}

func (r *Reporter) write(path string, files []string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, file := range files {
		if err := addFile(zw, file); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(r.Snapshots))
	for name := range r.Snapshots {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, err := r.Snapshots[name]()
		if err != nil {
			log.Warnf("Skipping %s snapshot in report: %v", name, err)
			continue
		}
		w, err := zw.Create(name + ".json")
		if err != nil {
			return fmt.Errorf("failed to add %s snapshot: %w", name, err)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode %s snapshot: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish report: %w", err)
	}
	return out.Sync()
}

// logFiles returns the active log and its rotated backups, oldest first.
func (r *Reporter) logFiles() ([]string, error) {
	if r.LogFile == "" {
		return nil, nil
	}

	dir := filepath.Dir(r.LogFile)
	ext := filepath.Ext(r.LogFile)
	prefix := strings.TrimSuffix(filepath.Base(r.LogFile), ext) + "-"

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list log dir: %w", err)
	}

	var backups []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix) && (strings.HasSuffix(name, ext) || strings.HasSuffix(name, ext+".gz")) {
			backups = append(backups, filepath.Join(dir, name))
		}
	}
	sort.Strings(backups)

	if _, err := os.Stat(r.LogFile); err == nil {
		backups = append(backups, r.LogFile)
	}
	return backups, nil
}

func addFile(zw *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = filepath.Base(path)
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", path, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", path, err)
	}
	return nil
}
