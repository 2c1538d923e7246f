package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/mergekeeper/cmd/mergekeeper/commands"
	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/version"
)

func main() {
	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("mergekeeper"),
		kong.Description("Tracks cross-branch merge units and drives them from TODO to DONE."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	err := parser.Run(&commands.Global{}, &cli)
	errors.NewCLIErrorAdapter(cli.Verbose, nil).HandleError(err)
}
