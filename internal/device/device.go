/*
axpbox-sub000 - Shared device-level constants and the emulator-fatal error taxonomy.

	Copyright (c) 2024, Richard Cornwell
	Copyright (c) 2026, the axpbox-sub000 authors

	Permission is hereby granted, free of charge, to any person obtaining a
	copy of this software and associated documentation files (the "Software"),
	to deal in the Software without restriction, including without limitation
	the rights to use, copy, modify, merge, publish, distribute, sublicense,
	and/or sell copies of the Software, and to permit persons to whom the
	Software is furnished to do so, subject to the following conditions:

	The above copyright notice and this permission notice shall be included in
	all copies or substantial portions of the Software.

	THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
	IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
	FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
	RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
	IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
	CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/
package device

import "fmt"

// NoDev is the sentinel device/unit number meaning "nothing attached",
// used by the config parser and by controller wiring alike.
const NoDev uint16 = 0xffff

// Kind enumerates the emulator-fatal error categories.
type Kind int

const (
	NotImplemented Kind = iota
	InvalidArgument
	IllegalState
	Configuration
	Thread
)

func (k Kind) String() string {
	switch k {
	case NotImplemented:
		return "NotImplemented"
	case InvalidArgument:
		return "InvalidArgument"
	case IllegalState:
		return "IllegalState"
	case Configuration:
		return "Configuration"
	case Thread:
		return "Thread"
	default:
		return "Unknown"
	}
}

// FatalError is raised by a worker when it hits an emulator-fatal
// condition. The driver's health check observes the worker's dead flag
// and wraps this with the worker's identity before terminating the emulator.
type FatalError struct {
	Kind      Kind
	Component string
	Message   string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Component, e.Kind, e.Message)
}

// Fatal constructs a FatalError naming the originating component.
func Fatal(component string, kind Kind, format string, args ...any) *FatalError {
	return &FatalError{Kind: kind, Component: component, Message: fmt.Sprintf(format, args...)}
}
