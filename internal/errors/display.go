package errors

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// DisplayError writes err to w with type-specific coloring.
func DisplayError(w io.Writer, err error) {
	var e *Error
	if !As(err, &e) {
		fmt.Fprintf(w, "%s\n", color.RedString("Error: %v", err))
		return
	}

	colorFunc := getErrorStyle(e.Type)
	fmt.Fprintf(w, "\n%s\n", colorFunc("%s error: %s", e.Type, e.Error()))

	if e.Cause != "" {
		fmt.Fprintf(w, "   %s %s\n", color.YellowString("Cause:"), color.HiBlackString(e.Cause))
	}

	if len(e.Solutions) > 0 {
		fmt.Fprintf(w, "\n   %s\n", color.GreenString("Solutions:"))
		for i, solution := range e.Solutions {
			fmt.Fprintf(w, "   %s %s\n", color.HiBlackString(fmt.Sprintf("%d.", i+1)), solution)
		}
	}

	fmt.Fprintln(w)
}

// DisplayWarning shows a warning message on stderr
func DisplayWarning(message string) {
	fmt.Fprintf(os.Stderr, "Warning: %s\n", color.YellowString(message))
}

// getErrorStyle returns the appropriate color function for an error type
func getErrorStyle(errType ErrorType) func(format string, a ...interface{}) string {
	switch errType {
	case ErrorTypeConfiguration:
		return color.YellowString
	case ErrorTypeStorage:
		return color.MagentaString
	case ErrorTypePush:
		return color.CyanString
	default:
		return color.RedString
	}
}
