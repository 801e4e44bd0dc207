// Package runlog writes the human-readable progress log of a pipeline run.
// Every line is prefixed with the local time and written to all sinks, for
// example stdout and <output>/viralmsa.log.
package runlog

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// TimeFormat is the layout of the timestamp prefix.
const TimeFormat = "2006-01-02 15:04:05"

// Log is a run log. It is safe for concurrent use.
type Log struct {
	mu    sync.Mutex
	ws    []io.Writer
	f     file.File
	now   func() time.Time
	err   error
	lines int
}

// New returns a log that writes to each of ws.
func New(ws ...io.Writer) *Log {
	return &Log{ws: ws, now: time.Now}
}

// Create opens a log file at path. If stdout is non-nil, lines are also
// written there. The caller must call Close.
func Create(ctx context.Context, path string, stdout io.Writer) (*Log, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	l := New(f.Writer(ctx))
	if stdout != nil {
		l.ws = append(l.ws, stdout)
	}
	l.f = f
	return l, nil
}

// Printf formats a message and writes it as one timestamped line.
func (l *Log) Printf(format string, v ...interface{}) {
	msg := strings.TrimRight(fmt.Sprintf(format, v...), "\n")
	log.Debug.Printf("runlog: %s", msg)
	l.writeLine(fmt.Sprintf("[%s] %s\n", l.now().Format(TimeFormat), msg))
}

// Section writes a section title, e.g. "===== ALIGNMENT =====".
func (l *Log) Section(title string) {
	l.Printf("===== %s =====", strings.ToUpper(title))
}

// Blank writes a line holding only the timestamp.
func (l *Log) Blank() {
	l.writeLine(fmt.Sprintf("[%s] \n", l.now().Format(TimeFormat)))
}

// Lines returns the number of lines written.
func (l *Log) Lines() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines
}

func (l *Log) writeLine(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.ws {
		if _, err := io.WriteString(w, line); err != nil && l.err == nil {
			l.err = err
			log.Error.Printf("runlog: %v", err)
		}
	}
	l.lines++
}

// Close closes the log file opened by Create. It returns the first write
// error, if any.
func (l *Log) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.err
	if l.f != nil {
		if e := l.f.Close(ctx); e != nil && err == nil {
			err = e
		}
		l.f = nil
	}
	return err
}
