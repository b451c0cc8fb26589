package writer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"iptv-check/work/logger"
	"iptv-check/work/parser"
	"iptv-check/work/types"
)

// Header starts every playlist this package creates.
const Header = "#EXTM3U\n\n"

// PartSuffix is appended to the target path while a recheck is running.
const PartSuffix = ".part"

// Writer appends validated channels to a playlist file. The file is opened
// on the first append: a missing or empty file gets the header first, an
// existing one is appended to. Every entry is a single write of
// "metadata\nurl\n\n", so an interrupted run leaves only whole entries.
type Writer struct {
	target  string // final playlist path
	path    string // file actually written, target or target+PartSuffix
	staging bool
	fresh   bool // truncate on first open instead of appending

	mu      sync.Mutex
	file    *os.File
	written int
	closed  bool
}

// New returns a Writer appending directly to path.
func New(path string) *Writer {
	return &Writer{target: path, path: path}
}

// NewFresh returns a Writer whose file only holds the current run: the
// first append truncates it, and Commit leaves a header-only file when
// nothing was appended.
func NewFresh(path string) *Writer {
	return &Writer{target: path, path: path, fresh: true}
}

// NewStaged returns a Writer for replacing path: entries go to a fresh
// path+PartSuffix file that Commit renames over path.
func NewStaged(path string) *Writer {
	part := path + PartSuffix
	if err := os.Remove(part); err == nil {
		logger.Debug("{writer - NewStaged} removed stale %s", part)
	}
	return &Writer{target: path, path: part, staging: true}
}

// Path is the playlist the entries end up in.
func (w *Writer) Path() string { return w.target }

// Written is the number of entries appended so far.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Append writes one channel entry, opening the file on first use.
//
// Parameters:
//   - ch: the channel; its metadata line is written as parsed
//
// Returns:
//   - error: the writer was closed, or the file could not be opened or
//     written
func (w *Writer) Append(ch types.ChannelRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("writer is closed")
	}
	if err := w.open(); err != nil {
		return err
	}

	if _, err := io.WriteString(w.file, FormatEntry(ch)); err != nil {
		return fmt.Errorf("failed to append to %s: %w", w.path, err)
	}
	w.written++
	return nil
}

// open prepares the file for appending. It writes the header to a new,
// empty or fresh file and a newline to a file whose last line is not
// terminated, so the first entry always starts on its own line.
func (w *Writer) open() error {
	// already open from an earlier append
	if w.file != nil {
		return nil
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if w.fresh {
		flags |= os.O_TRUNC
	}

	// header for new files, a separator newline for files that were cut
	// short mid-line, nothing otherwise
	prefix := ""
	info, err := os.Stat(w.path)
	switch {
	case w.fresh:
		prefix = Header
	case errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0):
		prefix = Header
	case err != nil:
		return fmt.Errorf("failed to stat %s: %w", w.path, err)
	default:
		endsWithNewline, err := lastByteIsNewline(w.path, info.Size())
		if err != nil {
			return err
		}
		if !endsWithNewline {
			prefix = "\n"
		}
	}

	f, err := os.OpenFile(w.path, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", w.path, err)
	}

	// header or separator goes out before the first entry
	if prefix != "" {
		if _, err := io.WriteString(f, prefix); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", w.path, err)
		}
	}

	w.file = f
	return nil
}

func lastByteIsNewline(path string, size int64) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	b := make([]byte, 1)
	if _, err := f.ReadAt(b, size-1); err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return b[0] == '\n', nil
}

// Commit finishes the run. A staged writer replaces the target with what
// was written, or removes the target when nothing was.
func (w *Writer) Commit() error {
	if err := w.close(); err != nil {
		return err
	}
	if w.fresh && w.Written() == 0 {
		if err := os.WriteFile(w.path, []byte(Header), 0644); err != nil {
			return fmt.Errorf("failed to reset %s: %w", w.path, err)
		}
		return nil
	}
	if !w.staging {
		return nil
	}

	if w.Written() == 0 {
		os.Remove(w.path)
		if err := os.Remove(w.target); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", w.target, err)
		}
		logger.Info("[WRITER] No channels online, removed %s", w.target)
		return nil
	}

	if err := os.Rename(w.path, w.target); err != nil {
		return fmt.Errorf("failed to replace %s: %w", w.target, err)
	}
	return nil
}

// Abort stops the run. Entries already appended to a direct writer stay;
// a staged writer drops its part file and leaves the target untouched.
func (w *Writer) Abort() error {
	err := w.close()
	if w.staging {
		if rmErr := os.Remove(w.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn("{writer - Abort} failed to remove %s: %v", w.path, rmErr)
		}
	}
	return err
}

func (w *Writer) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.file == nil {
		return nil
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", w.path, err)
	}
	return nil
}

// FormatEntry renders a channel as it appears in the output playlist.
func FormatEntry(ch types.ChannelRecord) string {
	return MetadataLine(ch) + "\n" + ch.URL + "\n\n"
}

// MetadataLine is the tag line written above a URL: the original line when
// it is a tag, otherwise an #EXTINF line naming the channel.
func MetadataLine(ch types.ChannelRecord) string {
	meta := strings.TrimSpace(ch.DisplayMetadata)
	switch {
	case meta == "":
		return "#EXTINF:-1," + parser.DisplayName(ch)
	case strings.HasPrefix(meta, "#"):
		return meta
	default:
		return "#EXTINF:-1," + meta
	}
}
