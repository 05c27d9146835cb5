package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"

	"github.com/crankd/crankd/cmd/common"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

var currentBuildArgs BuildArgs

func Execute(args []string, bArgs BuildArgs) error {
	currentBuildArgs = bArgs
	app := cli.App{
		Name:                  "crankd",
		HelpName:              "crankd",
		Usage:                 "A keeper daemon for ledger automations.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "crankd <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:                   "daemon",
				Usage:                  "run the keeper daemon in the foreground",
				Action:                 daemon,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            DaemonDescription,
				UseShortOptionHandling: true,
				Flags:                  daemonFlags,
			},
			{
				Name:               "stop-daemon",
				Usage:              "stop the running daemon",
				Action:             stopDaemon,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        StopDaemonDescription,
			},
			{
				Name:               "status",
				Aliases:            []string{"s"},
				Usage:              "show the daemon's scheduling snapshot",
				Action:             status,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        StatusDescription,
			},
			{
				Name:               "watch",
				Aliases:            []string{"w"},
				Usage:              "stream live round summaries",
				Action:             watch,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        WatchDescription,
			},
			{
				Name:                   "history",
				Aliases:                []string{"l"},
				Usage:                  "query the scheduling journal",
				Action:                 history,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            HistoryDescription,
				UseShortOptionHandling: true,
				Flags:                  histFlags,
			},
			{
				Name:               "pause",
				Usage:              "suspend trigger evaluation for an automation",
				Action:             pause,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        PauseDescription,
			},
			{
				Name:               "resume",
				Usage:              "lift a local pause",
				Action:             resume,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        ResumeDescription,
			},
			{
				Name:                   "flush",
				Aliases:                []string{"c"},
				Usage:                  "clear an automation's local scheduling state",
				Action:                 flush,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            FlushDescription,
				UseShortOptionHandling: true,
				Flags:                  flsFlags,
			},
			{
				Name:               "key",
				Aliases:            []string{"k"},
				Usage:              "manage the worker signing identity",
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        KeyDescription,
				Subcommands: []cli.Command{
					{
						Name:   "init",
						Usage:  "generate a fresh keypair",
						Action: keyInit,
						Flags:  keyFlags,
					},
					{
						Name:   "show",
						Usage:  "print the signatory address",
						Action: keyShow,
						Flags:  keyFlags,
					},
					{
						Name:   "import",
						Usage:  "import a keypair from a hex seed",
						Action: keyImport,
						Flags:  keyFlags,
					},
					{
						Name:   "delete",
						Usage:  "delete the stored keypair",
						Action: keyDelete,
						Flags:  keyDeleteFlags,
					},
				},
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of crankd",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		Action:                 status,
		UseShortOptionHandling: true,
		HideHelp:               true,
		HideVersion:            true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
