package main

import (
	"fmt"

	"github.com/golang/glog"
)

const assertMsg = "An assertion has failed"

// assertf checks an internal invariant of the code generators. Malformed
// input never reaches here; a failure means a bug in the backend itself.
func assertf(cond bool, msg string, args ...interface{}) {
	if !cond {
		failfast(fmt.Sprintf("%v: %v", assertMsg, fmt.Sprintf(msg, args...)))
	}
}

// failfast logs and panics in a way that is friendly to debugging.
func failfast(msg string) {
	glog.Errorf("fatal: %v", msg)
	glog.Flush()
	panic(msg)
}
