package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/law-makers/tablecrawl/internal/ui"
	"github.com/spf13/cobra"
)

// minFlagColumn is the narrowest flag column in help output.
const minFlagColumn = 28

func init() {
	// Disable the default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.SetHelpFunc(customHelpFunc)
	rootCmd.SetUsageFunc(customUsageFunc)
}

// customHelpFunc provides a colorized help output on stdout.
func customHelpFunc(cmd *cobra.Command, args []string) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "\n%s%s%s\n", ui.ColorBold+ui.ColorCyan, strings.ToUpper(cmd.Name()), ui.ColorReset)
	if cmd.Short != "" {
		fmt.Fprintf(w, "%s\n", cmd.Short)
	}
	if cmd.Long != "" && cmd.Long != cmd.Short {
		fmt.Fprintf(w, "\n%s\n", wrapText(cmd.Long, 80))
	}

	writeUsage(w, cmd)
	writeExamples(w, cmd)
	writeCommands(w, cmd)

	if cmd.HasAvailableLocalFlags() {
		writeSection(w, "Flags")
		writeFlags(w, cmd.LocalFlags().FlagUsages())
	}
	if cmd.HasAvailableInheritedFlags() {
		writeSection(w, "Global Flags")
		writeFlags(w, cmd.InheritedFlags().FlagUsages())
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "\n%s\n", ui.Dim(fmt.Sprintf("Use \"%s <command> --help\" for more information about a command.", cmd.CommandPath())))
	}
	fmt.Fprintln(w)
}

// customUsageFunc prints the short usage shown after a command error.
func customUsageFunc(cmd *cobra.Command) error {
	w := cmd.ErrOrStderr()

	writeUsage(w, cmd)
	writeCommands(w, cmd)
	if cmd.HasAvailableLocalFlags() {
		writeSection(w, "Flags")
		writeFlags(w, cmd.LocalFlags().FlagUsages())
	}

	fmt.Fprintf(w, "\n%s\n", ui.Dim(fmt.Sprintf("Use \"%s --help\" for more information.", cmd.CommandPath())))
	return nil
}

func writeSection(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s%s%s\n", ui.ColorBold+ui.ColorWhite, title, ui.ColorReset)
}

func writeUsage(w io.Writer, cmd *cobra.Command) {
	writeSection(w, "Usage")
	if cmd.Runnable() {
		fmt.Fprintf(w, "  %s%s%s\n", ui.ColorCyan, cmd.UseLine(), ui.ColorReset)
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s%s%s %s<command>%s %s\n",
			ui.ColorCyan, cmd.CommandPath(), ui.ColorReset,
			ui.ColorYellow, ui.ColorReset,
			ui.Dim("[flags]"))
	}
}

// writeExamples prints comment lines dimmed and commands with a prompt,
// separating each comment from the command above it.
func writeExamples(w io.Writer, cmd *cobra.Command) {
	if !cmd.HasExample() {
		return
	}
	writeSection(w, "Examples")

	afterCommand := false
	for _, line := range strings.Split(cmd.Example, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "#"):
			if afterCommand {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "  %s\n", ui.Dim(line))
			afterCommand = false
		default:
			fmt.Fprintf(w, "  %s$ %s%s\n", ui.ColorGreen, line, ui.ColorReset)
			afterCommand = true
		}
	}
}

func writeCommands(w io.Writer, cmd *cobra.Command) {
	if !cmd.HasAvailableSubCommands() {
		return
	}
	writeSection(w, "Commands")

	var visible []*cobra.Command
	width := 0
	for _, c := range cmd.Commands() {
		if !c.IsAvailableCommand() || c.Name() == "help" {
			continue
		}
		visible = append(visible, c)
		width = max(width, len(c.Name()))
	}

	for _, c := range visible {
		fmt.Fprintf(w, "  %s%-*s%s  %s\n", ui.ColorCyan, width, c.Name(), ui.ColorReset, ui.Dim(c.Short))
	}
}

// writeFlags re-renders pflag usage text with colored flag names in an
// aligned column. Continuation lines are indented under the descriptions.
func writeFlags(w io.Writer, usages string) {
	lines := strings.Split(usages, "\n")

	width := minFlagColumn
	for _, line := range lines {
		if name, _, ok := splitFlagLine(line); ok {
			width = max(width, len(name))
		}
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, desc, ok := splitFlagLine(line)
		switch {
		case ok && desc != "":
			fmt.Fprintf(w, "  %s%-*s%s  %s\n", ui.ColorGreen, width, name, ui.ColorReset, ui.Dim(desc))
		case ok:
			fmt.Fprintf(w, "  %s%s%s\n", ui.ColorGreen, name, ui.ColorReset)
		default:
			fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", width+4), ui.Dim(strings.TrimSpace(line)))
		}
	}
}

// splitFlagLine splits a pflag usage line into the flag part and its
// description. ok is false for continuation lines.
func splitFlagLine(line string) (name, desc string, ok bool) {
	trimmed := strings.TrimLeft(line, " ")
	if !strings.HasPrefix(trimmed, "-") {
		return "", "", false
	}
	name, desc, _ = strings.Cut(trimmed, "  ")
	return strings.TrimSpace(name), strings.TrimSpace(desc), true
}

// wrapText wraps text at width while keeping paragraphs and list items
// on their own lines.
func wrapText(text string, width int) string {
	var paragraphs []string

	for _, para := range strings.Split(text, "\n\n") {
		var out []string
		for _, line := range strings.Split(para, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•") || strings.HasPrefix(line, "*") {
				out = append(out, line)
				continue
			}
			out = append(out, wrapLine(line, width)...)
		}
		if len(out) > 0 {
			paragraphs = append(paragraphs, strings.Join(out, "\n"))
		}
	}

	return strings.Join(paragraphs, "\n\n")
}

func wrapLine(line string, width int) []string {
	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(line) {
		switch {
		case current.Len() == 0:
		case current.Len()+1+len(word) <= width:
			current.WriteByte(' ')
		default:
			lines = append(lines, current.String())
			current.Reset()
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
