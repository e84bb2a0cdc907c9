package cli

import (
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

// completionShells maps each supported shell to its script generator and a
// one-line hint for loading it.
var completionShells = map[string]struct {
	gen  func(root *cobra.Command, w io.Writer) error
	hint string
}{
	"bash": {
		gen:  func(r *cobra.Command, w io.Writer) error { return r.GenBashCompletionV2(w, true) },
		hint: "source <(flowsync completion bash)",
	},
	"zsh": {
		gen:  func(r *cobra.Command, w io.Writer) error { return r.GenZshCompletion(w) },
		hint: `flowsync completion zsh > "${fpath[1]}/_flowsync"`,
	},
	"fish": {
		gen:  func(r *cobra.Command, w io.Writer) error { return r.GenFishCompletion(w, true) },
		hint: "flowsync completion fish | source",
	},
	"powershell": {
		gen:  func(r *cobra.Command, w io.Writer) error { return r.GenPowerShellCompletionWithDesc(w) },
		hint: "flowsync completion powershell | Out-String | Invoke-Expression",
	},
}

// completionCommand creates the completion command for shell autocompletion.
func (c *CLI) completionCommand() *cobra.Command {
	shells := slices.Sorted(maps.Keys(completionShells))

	var long strings.Builder
	long.WriteString("Generate a shell completion script for flowsync.\n\nLoad it in the current shell with:\n")
	for _, sh := range shells {
		long.WriteString("\n  " + sh + ":\n    $ " + completionShells[sh].hint + "\n")
	}

	return &cobra.Command{
		Use:                   "completion [" + strings.Join(shells, "|") + "]",
		Short:                 "Generate shell completion script",
		Long:                  long.String(),
		DisableFlagsInUseLine: true,
		ValidArgs:             shells,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return completionShells[args[0]].gen(cmd.Root(), cmd.OutOrStdout())
		},
	}
}
