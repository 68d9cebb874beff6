package output

import (
	"fmt"
	"slices"
	"strings"

	"catalogpull/internal/pull"
)

// RunMeta is the run context printed above the report.
type RunMeta struct {
	RunID     string
	OldServer string
	NewServer string
	ExitCode  int
	Finished  bool
}

const maxCellLen = 160

// RenderMarkdown renders rep as a Markdown document. A nil report renders a
// note that the run produced none.
func RenderMarkdown(rep *pull.Report, meta RunMeta) string {
	var b strings.Builder
	b.WriteString("# Catalog Pull Report\n\n")

	if meta.OldServer != "" || meta.NewServer != "" {
		fmt.Fprintf(&b, "Old server `%s`, new server `%s`.", meta.OldServer, meta.NewServer)
		if meta.RunID != "" {
			fmt.Fprintf(&b, " Run `%s`.", meta.RunID)
		}
		b.WriteString("\n\n")
	}

	if rep == nil {
		b.WriteString("No report was produced for this run.\n")
		if meta.Finished {
			fmt.Fprintf(&b, "\nExit code: %d\n", meta.ExitCode)
		}
		return b.String()
	}

	b.WriteString("| Nodes | Catalogs retrieved | Failed on new server | Failure rate | Dropped requests |\n")
	b.WriteString("| ---: | ---: | ---: | ---: | ---: |\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %.2f%% | %d |\n\n",
		rep.TotalNodes, rep.CompiledNodesTotal, rep.FailedNodesTotal, rep.TotalPercentage, rep.DroppedCalls)

	b.WriteString("## Files Failing to Compile\n\n")
	if len(rep.FailedToCompileFiles) == 0 {
		b.WriteString("No compile failures.\n\n")
	} else {
		b.WriteString("| # | File | Nodes |\n")
		b.WriteString("| ---: | --- | ---: |\n")
		for i, e := range rep.FailedToCompileFiles {
			fmt.Fprintf(&b, "| %d | `%s` | %d |\n", i+1, escapeCell(e.Bucket), e.Nodes)
		}
		b.WriteString("\n")
	}

	if len(rep.ExampleCompileErrors) > 0 {
		b.WriteString("## Example Compile Errors\n\n")
		for i, e := range rep.ExampleCompileErrors {
			bucket := ""
			if i < len(rep.FailedToCompileFiles) {
				bucket = rep.FailedToCompileFiles[i].Bucket
			}
			fmt.Fprintf(&b, "### %s\n\nNode `%s`:\n\n```text\n%s\n```\n\n", bucket, e.Node, strings.TrimSpace(e.Error))
		}
	}

	if len(rep.FailedNodes) > 0 {
		b.WriteString("## Failed Nodes\n\n")
		b.WriteString("| Node | Error |\n")
		b.WriteString("| --- | --- |\n")
		for _, node := range sortedKeys(rep.FailedNodes) {
			fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(node), escapeCell(summarizeError(rep.FailedNodes[node])))
		}
		b.WriteString("\n")
	}

	if meta.Finished {
		fmt.Fprintf(&b, "Exit code: %d\n", meta.ExitCode)
	}
	return b.String()
}

// summarizeError collapses whitespace and truncates long compile errors so
// they fit a table cell.
func summarizeError(errText string) string {
	s := strings.Join(strings.Fields(errText), " ")
	if len(s) > maxCellLen {
		return s[:maxCellLen-3] + "..."
	}
	return s
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
