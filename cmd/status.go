package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli"

	"github.com/crankd/crankd/cmd/common"
	"github.com/crankd/crankd/pkg/crankcli"
)

func status(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := crankcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "status", "new_client", err)
		return nil
	}
	defer client.Close()
	s, err := client.Status()
	if err != nil {
		common.PrintRuntimeErr(ctx, "status", "get_status", err)
		return nil
	}

	member := "no"
	if s.PoolMember {
		member = fmt.Sprintf("yes (%d workers)", s.PoolSize)
	}
	txt := "Daemon status:"
	txt += fmt.Sprintf("\n  Slot:          %d", s.Slot)
	txt += fmt.Sprintf("\n  Worker:        %d (%s)", s.WorkerID, s.Signatory)
	txt += fmt.Sprintf("\n  Pool member:   %s", member)
	txt += fmt.Sprintf("\n  Executable:    %d", s.Executable)
	txt += fmt.Sprintf("\n  Outstanding:   %d", s.Outstanding)
	txt += fmt.Sprintf("\n  Dropped:       %d", s.Dropped)
	if len(s.Paused) > 0 {
		txt += fmt.Sprintf("\n  Paused:        %s", strings.Join(s.Paused, ", "))
	}
	txt += fmt.Sprintf("\n  Uptime:        %s", s.Uptime)
	fmt.Println(txt)
	return nil
}
