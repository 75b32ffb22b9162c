package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type Flag int

const (
	Nil Flag = iota
	Info
	Debug
)

var FlagNameMap = map[string]Flag{
	"nil":   Nil,
	"info":  Info,
	"debug": Debug,
}

// Mode is global so that the verbosity doesn't need to be threaded through
// every constructor in the project.
var (
	Mode Flag = Nil

	mu     sync.Mutex
	output io.Writer = os.Stderr
)

// SetOutput redirects log output, it returns the previous writer
func SetOutput(w io.Writer) (prev io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	prev, output = output, w
	return
}

func ParseFlag(name string) (f Flag, err error) {
	var ok bool
	if f, ok = FlagNameMap[name]; !ok {
		err = fmt.Errorf("unknown log level %q", name)
	}
	return
}

func Infof(format string, args ...any) {
	if Mode >= Info {
		printf(format, args...)
	}
}

func Debugf(format string, args ...any) {
	if Mode >= Debug {
		printf(format, args...)
	}
}

func printf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(output, format, args...)
}
