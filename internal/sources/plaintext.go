package sources

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/runnerr0/wereyouhere/internal/history"
)

const maxLineSize = 10 * 1024 * 1024 // 10MB

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'` + "`" + `()\[\]{}]+`)

// Plaintext pulls http(s) URLs out of text files. Every URL is dated with
// the modification time of the file it was found in.
type Plaintext struct {
	tag  string
	root string
	log  *slog.Logger
}

// NewPlaintext returns a source for the file or directory tree at root.
func NewPlaintext(tag, root string, log *slog.Logger) *Plaintext {
	if log == nil {
		log = slog.Default()
	}
	return &Plaintext{tag: tag, root: root, log: log}
}

func (p *Plaintext) Tag() string { return p.tag }

func (p *Plaintext) Extract(ctx context.Context) ([]history.Pair, error) {
	if _, err := os.Stat(p.root); err != nil {
		return nil, fmt.Errorf("plaintext source %s: %w", p.root, err)
	}

	var pairs []history.Pair
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			p.log.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != p.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		found, err := p.extractFile(path)
		if err != nil {
			p.log.Warn("skipping file", "path", path, "error", err)
			return nil
		}
		pairs = append(pairs, found...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("extracted", "visits", len(pairs))
	return pairs, nil
}

func (p *Plaintext) extractFile(path string) ([]history.Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(f)
	head, _ := br.Peek(512)
	if bytes.IndexByte(head, 0) >= 0 {
		return nil, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	href := "file://" + filepath.ToSlash(abs)

	var pairs []history.Pair
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		for _, u := range urlPattern.FindAllString(line, -1) {
			u = strings.TrimRight(u, ".,;:!?")
			pairs = append(pairs, history.Pair{
				URL: u,
				Visit: history.Visit{
					DT:          info.ModTime(),
					Source:      p.tag,
					Context:     history.StringPtr(strings.TrimSpace(line)),
					Locator:     history.Locator{Title: abs + ":" + strconv.Itoa(lineNum), Href: href},
					OriginalURL: u,
				},
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}
