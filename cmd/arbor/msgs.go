package arbor

import (
	"embed"
	"strings"
)

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort       = "Reconcile a project's installed package tree"
	MsgInstallShort    = "Install the dependencies declared in arbor.toml"
	MsgPruneShort      = "Remove extraneous packages"
	MsgUpdateShort     = "Update packages within their declared ranges"
	MsgLsShort         = "Show the installed package tree"
	MsgLsLong          = "Ls prints the installed tree by ownership, marking dev and extraneous packages."
	MsgVersionShort    = "Print version information"
	MsgCompletionShort = "Generate shell completion script"
	MsgManShort        = "Generate man pages"
	MsgManLong         = "Man writes one man page per command into the given directory, the current one by default."

	// Status messages
	MsgVersionFormat = "arbor version %s\n  commit: %s\n  built:  %s\n"
	MsgManWritten    = "Wrote man pages to %s\n"
	MsgPlanHeader    = "Planned operations:"

	// Error messages
	MsgErrNoCommand   = "no command specified"
	MsgErrProjectDir  = "failed to resolve project directory: %w"
	MsgErrTracing     = "failed to set up tracing: %w"
	MsgErrManPages    = "failed to generate man pages: %w"
	MsgErrFlushTraces = "Failed to flush traces"
	MsgErrHelpTopics  = "Failed to load help topics"

	// Flag descriptions
	MsgFlagVerbose       = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagDryRun        = "Preview changes without executing them"
	MsgFlagDir           = "Project directory (default is the current directory)"
	MsgFlagRegistry      = "Registry directory (default is $XDG_DATA_HOME/arbor/registry)"
	MsgFlagJobs          = "Maximum operations applied at once within a step (0 = unlimited)"
	MsgFlagIgnoreScripts = "Do not run lifecycle scripts"
	MsgFlagFormat        = "Output format: auto, terminal or text"
	MsgFlagTrace         = "Write an OpenTelemetry span per progress group to stderr"
	MsgFlagProduction    = "Treat development dependencies as extraneous"
	MsgFlagSaveDev       = "Save new packages to dev-dependencies"
	MsgFlagSaveOptional  = "Save new packages to optional-dependencies"
	MsgFlagPlan          = "Also list every planned operation"
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/install-long.txt
	msgInstallLongRaw string
	MsgInstallLong    = strings.TrimSpace(msgInstallLongRaw)

	//go:embed msgs/install-example.txt
	msgInstallExampleRaw string
	MsgInstallExample    = strings.TrimRight(msgInstallExampleRaw, "\n")

	//go:embed msgs/prune-long.txt
	msgPruneLongRaw string
	MsgPruneLong    = strings.TrimSpace(msgPruneLongRaw)

	//go:embed msgs/prune-example.txt
	msgPruneExampleRaw string
	MsgPruneExample    = strings.TrimRight(msgPruneExampleRaw, "\n")

	//go:embed msgs/update-long.txt
	msgUpdateLongRaw string
	MsgUpdateLong    = strings.TrimSpace(msgUpdateLongRaw)

	//go:embed msgs/update-example.txt
	msgUpdateExampleRaw string
	MsgUpdateExample    = strings.TrimRight(msgUpdateExampleRaw, "\n")

	//go:embed msgs/completion-long.txt
	msgCompletionLongRaw string
	MsgCompletionLong    = strings.TrimSpace(msgCompletionLongRaw)

	//go:embed msgs/usage-template.txt
	msgUsageTemplateRaw string
	MsgUsageTemplate    = strings.TrimSpace(msgUsageTemplateRaw)
)

// helpTopics holds the documents served by "arbor help <topic>".
//
//go:embed msgs/topics
var helpTopics embed.FS
