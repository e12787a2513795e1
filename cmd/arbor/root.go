package arbor

import (
	"fmt"
	"io/fs"

	"github.com/arthur-debert/arbor/internal/version"
	"github.com/arthur-debert/arbor/pkg/cobrax/topics"
	"github.com/arthur-debert/arbor/pkg/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	// Initialize custom template formatting functions
	initTemplateFormatting()

	g := &globals{}

	rootCmd := &cobra.Command{
		Use:     "arbor",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.String(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(logging.Options{Verbosity: g.verbosity, Console: cmd.ErrOrStderr()})
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return fmt.Errorf(MsgErrNoCommand)
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&g.verbosity, "verbose", "v", MsgFlagVerbose)
	flags.BoolVar(&g.dryRun, "dry-run", false, MsgFlagDryRun)
	flags.StringVarP(&g.dir, "dir", "C", "", MsgFlagDir)
	flags.StringVar(&g.registry, "registry", "", MsgFlagRegistry)
	flags.IntVarP(&g.jobs, "jobs", "j", 0, MsgFlagJobs)
	flags.BoolVar(&g.ignoreScripts, "ignore-scripts", false, MsgFlagIgnoreScripts)
	flags.StringVar(&g.format, "format", "auto", MsgFlagFormat)
	flags.BoolVar(&g.trace, "trace", false, MsgFlagTrace)

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "COMMANDS:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "misc",
		Title: "MISC:",
	})

	rootCmd.SetUsageTemplate(MsgUsageTemplate)

	rootCmd.AddCommand(newInstallCmd(g))
	rootCmd.AddCommand(newPruneCmd(g))
	rootCmd.AddCommand(newUpdateCmd(g))
	rootCmd.AddCommand(newLsCmd(g))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(newManCmd())

	if err := installHelpTopics(rootCmd, g); err != nil {
		log.Warn().Err(err).Msg(MsgErrHelpTopics)
	}
	rootCmd.SetHelpCommandGroupID("misc")

	return rootCmd
}

func installHelpTopics(rootCmd *cobra.Command, g *globals) error {
	sub, err := fs.Sub(helpTopics, "msgs/topics")
	if err != nil {
		return err
	}
	m, err := topics.New(sub, topics.Options{Renderer: topicRenderer{g: g}})
	if err != nil {
		return err
	}
	topics.Install(rootCmd, m)
	return nil
}
