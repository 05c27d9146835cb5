package cmd

import (
	"fmt"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"

	"github.com/crankd/crankd/cmd/common"
	cmn "github.com/crankd/crankd/common"
	"github.com/crankd/crankd/pkg/crankcli"
	"github.com/crankd/crankd/pkg/cranklib"
)

func watch(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := crankcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "watch", "new_client", err)
		return nil
	}
	defer client.Close()
	s, err := client.Watch()
	if err != nil {
		common.PrintRuntimeErr(ctx, "watch", "watch", err)
		return nil
	}
	fmt.Printf(">> Watching worker %d from slot %d <<\n", s.WorkerID, s.Slot)

	p := mpb.New()
	// One bar per in-flight transaction, aged one slot per round until
	// the daemon reports it confirmed or dropped.
	bars := make(map[cranklib.Address]*mpb.Bar)

	client.AddHandler(cmn.UPDATE_ROUND, crankcli.NewRoundHandler(func(u *cmn.RoundUpdate) error {
		r := u.Report
		for _, ref := range r.Confirmed {
			if bar, ok := bars[ref]; ok {
				bar.SetCurrent(int64(cranklib.ConfirmationWindow))
				delete(bars, ref)
			}
		}
		for _, ref := range r.Dropped {
			if bar, ok := bars[ref]; ok {
				bar.Abort(true)
				delete(bars, ref)
			}
		}
		for _, bar := range bars {
			if bar.Current() < int64(cranklib.ConfirmationWindow) {
				bar.Increment()
			} else {
				// Timed out and retried; the daemon rebuilt the
				// transaction, so the window starts over.
				bar.SetCurrent(0)
			}
		}
		for _, tx := range r.Submitted {
			if _, ok := bars[tx.Ref]; !ok {
				bars[tx.Ref] = common.InitTxBar(p, tx.Ref.Short(), int64(cranklib.ConfirmationWindow))
			}
		}
		return nil
	}))
	err = client.Listen()
	p.Wait()
	if err != nil {
		common.PrintRuntimeErr(ctx, "watch", "listen", err)
	}
	return nil
}
