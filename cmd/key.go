package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/urfave/cli"

	"github.com/crankd/crankd/cmd/common"
	"github.com/crankd/crankd/pkg/cranklib"
	"github.com/crankd/crankd/pkg/keymgr"
)

var (
	forceKeyDelete bool

	keyFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "passphrase, p",
			Usage:       "protect the keypair with a passphrase instead of the OS keyring",
			Destination: &passphrase,
			EnvVar:      "CRANKD_PASSPHRASE",
		},
	}
	keyDeleteFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "force, f",
			Usage:       "use this flag to skip the confirmation prompt (default: false)",
			Destination: &forceKeyDelete,
		},
	}
)

func keyInit(ctx *cli.Context) error {
	store := keymgr.NewStore(configDir())
	if store.Exists() {
		fmt.Printf("A keypair already exists at %s.\nDelete it with 'crankd key delete' before generating a new one.\n", store.Path())
		return nil
	}
	kp, err := cranklib.NewKeypair()
	if err != nil {
		common.PrintRuntimeErr(ctx, "key", "generate", err)
		return nil
	}
	if err := store.Save(kp, passphrase); err != nil {
		common.PrintRuntimeErr(ctx, "key", "save", err)
		return nil
	}
	fmt.Printf("Generated new worker keypair.\nSignatory: %s\nStored at: %s\n", kp.Address(), store.Path())
	return nil
}

func keyShow(ctx *cli.Context) error {
	store := keymgr.NewStore(configDir())
	kp, err := store.Load(passphrase)
	if err != nil {
		switch {
		case errors.Is(err, keymgr.ErrNoKeypair):
			fmt.Println("No keypair found. Run 'crankd key init' to generate one.")
		case errors.Is(err, keymgr.ErrPassphraseRequired):
			fmt.Println("This keypair is passphrase-protected. Pass --passphrase to unlock it.")
		default:
			common.PrintRuntimeErr(ctx, "key", "load", err)
		}
		return nil
	}
	fmt.Printf("Signatory: %s\nStored at: %s\n", kp.Address(), store.Path())
	return nil
}

func keyImport(ctx *cli.Context) error {
	seedHex := ctx.Args().First()
	if seedHex == "" {
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no hex seed provided"),
		)
	} else if seedHex == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	store := keymgr.NewStore(configDir())
	if store.Exists() {
		fmt.Printf("A keypair already exists at %s.\nDelete it with 'crankd key delete' before importing another one.\n", store.Path())
		return nil
	}
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		common.PrintRuntimeErr(ctx, "key", "decode_seed", err)
		return nil
	}
	kp, err := cranklib.KeypairFromSeed(seed)
	if err != nil {
		common.PrintRuntimeErr(ctx, "key", "import", err)
		return nil
	}
	if err := store.Save(kp, passphrase); err != nil {
		common.PrintRuntimeErr(ctx, "key", "save", err)
		return nil
	}
	fmt.Printf("Imported worker keypair.\nSignatory: %s\nStored at: %s\n", kp.Address(), store.Path())
	return nil
}

func keyDelete(ctx *cli.Context) error {
	store := keymgr.NewStore(configDir())
	if !store.Exists() {
		fmt.Println("No keypair found, nothing to delete.")
		return nil
	}
	if !confirm(command("key delete"), forceKeyDelete) {
		return nil
	}
	if err := store.Delete(); err != nil {
		common.PrintRuntimeErr(ctx, "key", "delete", err)
		return nil
	}
	fmt.Println("Keypair deleted.")
	return nil
}
