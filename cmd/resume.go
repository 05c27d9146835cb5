package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli"

	"github.com/crankd/crankd/cmd/common"
	"github.com/crankd/crankd/pkg/crankcli"
)

func resume(ctx *cli.Context) error {
	ref := ctx.Args().First()
	if ref == "" {
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no automation address provided"),
		)
	} else if ref == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := crankcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "resume", "new_client", err)
		return nil
	}
	defer client.Close()
	msg, err := client.Resume(ref)
	if err != nil {
		common.PrintRuntimeErr(ctx, "resume", "resume", err)
		return nil
	}
	fmt.Println(msg)
	return nil
}
