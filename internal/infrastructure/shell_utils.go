package infrastructure

import "strings"

// shellSpecialChars need quoting when a command line is shown to a human
const shellSpecialChars = " \t'\"$`\\!*?[](){}|;<>&~#%\n\r"

// ShellEscape quotes s for display in a logged command line. Jobs are executed
// without a shell, so this never affects what the child receives.
func ShellEscape(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, shellSpecialChars) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// ShellEscapeCommand renders binary and args as a copy-pasteable command line
func ShellEscapeCommand(binary string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, ShellEscape(binary))
	for _, arg := range args {
		parts = append(parts, ShellEscape(arg))
	}
	return strings.Join(parts, " ")
}
