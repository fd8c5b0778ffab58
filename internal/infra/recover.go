package infra

import (
	"fmt"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Recover runs f and converts a panic into an error. The panic is logged
// with the frame it came from.
func Recover(id string, f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("object", "Recover").
				WithField("job", id).
				WithField("at", identifyPanic()).
				Errorf("job panicked: %v", r)
			err = fmt.Errorf("job %s panicked: %v", id, r)
		}
	}()
	return f()
}

func identifyPanic() string {
	var name, file string
	var line int
	var pc [16]uintptr

	n := runtime.Callers(3, pc[:])
	for _, pc := range pc[:n] {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		file, line = fn.FileLine(pc)
		name = fn.Name()
		if !strings.HasPrefix(name, "runtime.") {
			break
		}
	}

	switch {
	case name != "":
		return fmt.Sprintf("%v:%v", name, line)
	case file != "":
		return fmt.Sprintf("%v:%v", file, line)
	}

	return fmt.Sprintf("pc:%x", pc)
}
