package server

import (
	"fmt"
	"strconv"
)

const (
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m" // Bright black, often appears as gray

	ResetColor = "\033[0m" // Reset to default color
)

var methodColors = map[string]string{
	"GET":    Green,
	"POST":   Blue,
	"PUT":    Cyan,
	"DELETE": Yellow,
	"PATCH":  Magenta,
}

// colourMethod pads an HTTP method and wraps it in its terminal colour.
func colourMethod(method string) string {
	padded := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + padded + ResetColor
	}
	return Gray + padded + ResetColor
}

// colourStatus renders 5xx red, 4xx yellow and everything else green.
func colourStatus(status int) string {
	switch {
	case status >= 500:
		return Red + strconv.Itoa(status) + ResetColor
	case status >= 400:
		return Yellow + strconv.Itoa(status) + ResetColor
	default:
		return Green + strconv.Itoa(status) + ResetColor
	}
}
