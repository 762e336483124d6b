// Package logging gates verbose output behind a debug switch. Everything
// goes through the standard logger so server and terminal client share one
// format.
package logging

import "log"

// Debug controls whether debug logs are printed.
var Debug bool

// Debugf logs a formatted debug message when Debug is enabled.
func Debugf(format string, v ...any) {
	if Debug {
		log.Printf("DEBUG: "+format, v...)
	}
}

// Errorf logs a failure that was handled but should not go unnoticed, such as
// a persistence error after a move already reached the board.
func Errorf(format string, v ...any) {
	log.Printf("ERROR: "+format, v...)
}
