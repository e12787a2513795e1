package arbor

import (
	"fmt"
	"os"

	"github.com/arthur-debert/arbor/internal/version"
	"github.com/arthur-debert/arbor/pkg/commands"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

// reconcile runs one reconciliation command and prints its summary.
func reconcile(cmd *cobra.Command, g *globals, command commands.Command, opts commands.Options, showPlan bool) error {
	a, err := newApp(cmd, g)
	if err != nil {
		return err
	}

	log.Info().
		Str("command", string(command)).
		Str("root", a.cfg.Project.Root).
		Strs("args", opts.Args).
		Bool("dry_run", a.cfg.Pipeline.DryRun).
		Msg("Reconciling project")

	result, err := a.run(cmd.Context(), command, opts)
	if err != nil {
		// Operations may already be applied when execution fails
		if result != nil && result.Report != nil {
			a.report(result, false)
		}
		return err
	}
	a.report(result, showPlan)
	return nil
}

// installedCompletion completes the names of installed top-level packages.
// Nested names are valid selectors but never select anything.
func installedCompletion(g *globals) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		a, err := newApp(cmd, g)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		t, _, err := a.store.Load(cmd.Context(), a.cfg.Project.Root)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}

		given := make(map[string]bool, len(args))
		for _, arg := range args {
			given[arg] = true
		}
		var names []string
		for _, n := range t.TopLevel() {
			if !given[n.Name] {
				names = append(names, n.Name)
			}
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}

func newInstallCmd(g *globals) *cobra.Command {
	var saveDev, saveOptional, showPlan bool
	cmd := &cobra.Command{
		Use:     "install [packages...]",
		Aliases: []string{"i"},
		Short:   MsgInstallShort,
		Long:    MsgInstallLong,
		Example: MsgInstallExample,
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return reconcile(cmd, g, commands.CommandInstall, commands.Options{
				Args:         args,
				SaveDev:      saveDev,
				SaveOptional: saveOptional,
			}, showPlan)
		},
	}
	cmd.Flags().BoolVarP(&saveDev, "save-dev", "D", false, MsgFlagSaveDev)
	cmd.Flags().BoolVarP(&saveOptional, "save-optional", "O", false, MsgFlagSaveOptional)
	cmd.Flags().BoolVar(&showPlan, "plan", false, MsgFlagPlan)
	cmd.MarkFlagsMutuallyExclusive("save-dev", "save-optional")
	return cmd
}

func newPruneCmd(g *globals) *cobra.Command {
	var production, showPlan bool
	cmd := &cobra.Command{
		Use:               "prune [packages...]",
		Short:             MsgPruneShort,
		Long:              MsgPruneLong,
		Example:           MsgPruneExample,
		GroupID:           "core",
		ValidArgsFunction: installedCompletion(g),
		RunE: func(cmd *cobra.Command, args []string) error {
			return reconcile(cmd, g, commands.CommandPrune, commands.Options{Args: args}, showPlan)
		},
	}
	cmd.Flags().BoolVar(&production, "production", false, MsgFlagProduction)
	cmd.Flags().BoolVar(&showPlan, "plan", false, MsgFlagPlan)
	return cmd
}

func newUpdateCmd(g *globals) *cobra.Command {
	var showPlan bool
	cmd := &cobra.Command{
		Use:               "update [packages...]",
		Aliases:           []string{"up"},
		Short:             MsgUpdateShort,
		Long:              MsgUpdateLong,
		Example:           MsgUpdateExample,
		GroupID:           "core",
		ValidArgsFunction: installedCompletion(g),
		RunE: func(cmd *cobra.Command, args []string) error {
			return reconcile(cmd, g, commands.CommandUpdate, commands.Options{Args: args}, showPlan)
		},
	}
	cmd.Flags().BoolVar(&showPlan, "plan", false, MsgFlagPlan)
	return cmd
}

func newLsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   MsgLsShort,
		Long:    MsgLsLong,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			t, _, err := a.store.Load(cmd.Context(), a.cfg.Project.Root)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, a.render.RenderTree(t))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), MsgVersionFormat, version.Version, version.Commit, version.Date)
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 MsgCompletionShort,
		Long:                  MsgCompletionLong,
		GroupID:               "misc",
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}

func newManCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "man [directory]",
		Short:   MsgManShort,
		Long:    MsgManLong,
		GroupID: "misc",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf(MsgErrManPages, err)
			}
			header := &doc.GenManHeader{
				Title:   "ARBOR",
				Section: "1",
			}
			if err := doc.GenManTree(cmd.Root(), header, dir); err != nil {
				return fmt.Errorf(MsgErrManPages, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), MsgManWritten, dir)
			return nil
		},
	}
}
