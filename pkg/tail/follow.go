package tail

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/layer5one/elysia/pkg/core"
)

// Follower streams lines appended to a log file, polling for new data.
// The file may not exist yet; the follower waits for it to appear and
// survives truncation and replacement.
type Follower struct {
	path     string
	interval time.Duration
	logger   *slog.Logger
}

// NewFollower creates a follower for the file at path.
func NewFollower(path string, logger *slog.Logger) *Follower {
	return &Follower{
		path:     path,
		interval: 250 * time.Millisecond,
		logger:   logger,
	}
}

// Run tails the file until ctx is done and returns the line channel.
// The channel is closed on exit; slow consumers drop lines rather than
// stalling the reader.
func (f *Follower) Run(ctx context.Context) <-chan core.LogLine {
	ch := make(chan core.LogLine, 100)

	go func() {
		defer close(ch)

		first := true
		for {
			file, err := os.Open(f.path)
			if err != nil {
				if !sleepCtx(ctx, f.interval) {
					return
				}
				continue
			}

			if first {
				// Skip history on the initial attach; replacements are
				// read from the top.
				file.Seek(0, io.SeekEnd)
				first = false
			}
			f.logger.Debug("tailing file", "path", f.path)

			f.stream(ctx, file, ch)
			file.Close()
			if ctx.Err() != nil {
				return
			}
		}
	}()

	return ch
}

// stream reads lines until ctx is done or the file is replaced.
func (f *Follower) stream(ctx context.Context, file *os.File, ch chan<- core.LogLine) {
	reader := bufio.NewReader(file)
	var pending strings.Builder

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			// Partial write: hold the fragment until its newline arrives.
			pending.WriteString(line)

			if !sleepCtx(ctx, f.interval) {
				return
			}

			// Check for truncation (rotation in place)
			info, serr := file.Stat()
			if serr != nil {
				return
			}
			pos, _ := file.Seek(0, io.SeekCurrent)
			if info.Size() < pos {
				file.Seek(0, io.SeekStart)
				reader.Reset(file)
				pending.Reset()
			}

			// Check for replacement (new inode under the same name)
			nameInfo, nerr := os.Stat(f.path)
			if nerr != nil || !os.SameFile(nameInfo, info) {
				return
			}
			continue
		}

		if pending.Len() > 0 {
			line = pending.String() + line
			pending.Reset()
		}

		entry := core.LogLine{
			TsUnixMs: time.Now().UnixMilli(),
			Line:     strings.TrimRight(line, "\n"),
		}
		select {
		case ch <- entry:
		default:
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
