package archive

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/justin4957/zeekreport/internal/parser"
	"github.com/justin4957/zeekreport/pkg/models"
)

// Reader extracts Zeek logs from a zip of capture folders
type Reader struct {
	suffix string
	parser parser.LogParser
	logger *zap.Logger
}

// NewReader creates a reader for members ending in suffix
func NewReader(suffix string, p parser.LogParser, logger *zap.Logger) *Reader {
	if p == nil {
		p = parser.NewParser("auto")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{suffix: suffix, parser: p, logger: logger}
}

// ReadFile opens the archive at path and decodes every qualifying member,
// keyed by its top-level folder.
func (r *Reader) ReadFile(path string) (map[string]*models.Table, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer zr.Close()

	return r.read(&zr.Reader)
}

// Read decodes an archive held in memory or any other io.ReaderAt
func (r *Reader) Read(ra io.ReaderAt, size int64) (map[string]*models.Table, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	return r.read(zr)
}

func (r *Reader) read(zr *zip.Reader) (map[string]*models.Table, error) {
	tables := make(map[string]*models.Table)

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		compressed, ok := r.qualifies(f.Name)
		if !ok {
			continue
		}

		folder, _, nested := strings.Cut(f.Name, "/")
		if !nested || folder == "" {
			r.logger.Debug("skipping log outside a capture folder", zap.String("member", f.Name))
			continue
		}

		table, err := r.decode(f, compressed)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", f.Name, err)
		}
		table.Name = folder
		table.Path = f.Name

		if prev, exists := tables[folder]; exists {
			r.logger.Warn("capture folder has more than one log, keeping the last",
				zap.String("folder", folder),
				zap.String("replaced", prev.Path),
				zap.String("member", f.Name),
			)
		}
		tables[folder] = table

		r.logger.Debug("decoded log",
			zap.String("member", f.Name),
			zap.Int("rows", table.Len()),
			zap.Int("columns", len(table.Columns)),
		)
	}

	return tables, nil
}

// qualifies reports whether name is a log member, and whether it is gzipped
func (r *Reader) qualifies(name string) (compressed bool, ok bool) {
	switch {
	case strings.HasSuffix(name, r.suffix):
		return false, true
	case strings.HasSuffix(name, r.suffix+".gz"):
		return true, true
	}
	return false, false
}

func (r *Reader) decode(f *zip.File, compressed bool) (*models.Table, error) {
	rc, err := openMember(f, compressed)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return r.parser.Parse(rc)
}

func openMember(f *zip.File, compressed bool) (io.ReadCloser, error) {
	zf, err := f.Open()
	if err != nil {
		return nil, err
	}
	if !compressed {
		return zf, nil
	}
	gr, err := gzip.NewReader(zf)
	if err != nil {
		zf.Close()
		return nil, err
	}
	return &rc{Reader: gr, closers: []io.Closer{gr, zf}}, nil
}

type rc struct {
	io.Reader
	closers []io.Closer
}

func (r *rc) Close() error {
	var err error
	for i := range r.closers {
		if e := r.closers[i].Close(); err == nil && e != nil {
			err = e
		}
	}
	return err
}
