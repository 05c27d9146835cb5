package cmd

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/crankd/crankd/cmd/common"
	cmn "github.com/crankd/crankd/common"
	"github.com/crankd/crankd/pkg/crankcli"
)

var (
	histRef   string
	histEvent string
	histLimit int

	histFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "ref, r",
			Usage:       "only show entries for this automation (default: all)",
			Destination: &histRef,
		},
		cli.StringFlag{
			Name:        "event, e",
			Usage:       "only show entries of this kind (submitted, confirmed, retried, dropped, vetoed, rotation)",
			Destination: &histEvent,
		},
		cli.IntFlag{
			Name:        "limit, n",
			Usage:       "maximum number of entries to show",
			Destination: &histLimit,
		},
	}
)

func history(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := crankcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "history", "new_client", err)
		return nil
	}
	defer client.Close()
	h, err := client.History(&cmn.HistoryParams{
		Ref:   histRef,
		Event: histEvent,
		Limit: histLimit,
	})
	if err != nil {
		common.PrintRuntimeErr(ctx, "history", "get_history", err)
		return nil
	}
	if len(h.Entries) == 0 {
		fmt.Println("crankd: no journal entries found")
		return nil
	}
	txt := "Here is your scheduling history:"
	txt += "\n\n----------------------------------------------------------------"
	txt += "\n|    Slot    |     Ref      |   Event   |        When        |"
	txt += "\n|------------|--------------|-----------|--------------------|"
	for _, e := range h.Entries {
		ref := e.Ref
		if len(ref) > 12 {
			ref = ref[:9] + "..."
		}
		txt += fmt.Sprintf("\n| %s | %s | %s | %s |",
			common.Beaut(fmt.Sprintf("%d", e.Slot), 10),
			common.Beaut(ref, 12),
			common.Beaut(e.Event, 9),
			e.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	txt += "\n----------------------------------------------------------------"
	fmt.Println(txt)
	return nil
}
