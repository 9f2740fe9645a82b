package network

import "log"

// Logf is the package diagnostic logger. It defaults to log.Printf.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces Logf. Passing nil mutes the package.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}
