package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// PagePath inserts "_n" before the extension of path:
// "out/data.txt", 2 -> "out/data_2.txt".
func PagePath(path string, n int) string {
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	return base + "_" + strconv.Itoa(n) + ext
}

// Pager splits a row stream into files. Sinks embed it and call Row before
// writing every record; Row opens the first file and rotates to the next
// one whenever the page is full.
//
// Header and Footer, when set, run at the start and end of every file.
type Pager struct {
	Path     string
	PageSize int

	Header func(w *bufio.Writer, page int) error
	Footer func(w *bufio.Writer, page int) error

	// OnPage runs after each page is closed.
	OnPage func(path string)

	f     *os.File
	w     *bufio.Writer
	page  int
	rows  int
	files []string
}

// Row prepares the writer for the next record and returns it along with the
// record's position in its page (0 for the first row).
func (p *Pager) Row() (*bufio.Writer, int, error) {
	if p.w == nil || (p.PageSize > 0 && p.rows == p.PageSize) {
		if err := p.finish(); err != nil {
			return nil, 0, err
		}
		if err := p.open(); err != nil {
			return nil, 0, err
		}
	}
	pos := p.rows
	p.rows++
	return p.w, pos, nil
}

// Close finishes the open page. A sink that never saw a row still produces
// one (empty) file so that the output path always exists.
func (p *Pager) Close() error {
	if p.w == nil && p.page == 0 {
		if err := p.open(); err != nil {
			return err
		}
	}
	return p.finish()
}

// Files lists the files opened so far.
func (p *Pager) Files() []string { return p.files }

func (p *Pager) open() error {
	p.page++
	path := p.Path
	if p.PageSize > 0 {
		path = PagePath(p.Path, p.page)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir for %q: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output %q: %w", path, err)
	}
	p.f = f
	p.w = bufio.NewWriterSize(f, 256*1024)
	p.rows = 0
	p.files = append(p.files, path)

	if p.Header != nil {
		if err := p.Header(p.w, p.page); err != nil {
			return fmt.Errorf("write %q: %w", path, err)
		}
	}
	return nil
}

func (p *Pager) finish() error {
	if p.w == nil {
		return nil
	}
	path := p.files[len(p.files)-1]
	w, f := p.w, p.f
	p.w, p.f = nil, nil

	var err error
	if p.Footer != nil {
		err = p.Footer(w, p.page)
	}
	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	if p.OnPage != nil {
		p.OnPage(path)
	}
	return nil
}
