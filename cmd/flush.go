package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli"

	"github.com/crankd/crankd/cmd/common"
	"github.com/crankd/crankd/pkg/crankcli"
)

var (
	forceFlush bool

	flsFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "force, f",
			Usage:       "use this flag to skip the confirmation prompt (default: false)",
			Destination: &forceFlush,
		},
	}
)

func flush(ctx *cli.Context) error {
	ref := ctx.Args().First()
	if ref == "" {
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no automation address provided"),
		)
	} else if ref == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	if !confirm(command("flush"), forceFlush) {
		return nil
	}
	client, err := crankcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "flush", "new_client", err)
		return nil
	}
	defer client.Close()
	msg, err := client.Flush(ref)
	if err != nil {
		common.PrintRuntimeErr(ctx, "flush", "flush", err)
		return nil
	}
	fmt.Println(msg)
	return nil
}
