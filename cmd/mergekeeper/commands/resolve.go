package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
)

// ResolveCmd implements the 'version' command.
type ResolveCmd struct {
	URL string `arg:"" help:"Branch URL"`
	VCS string `help:"Backend of the URL" enum:"svn,git" default:"svn"`
}

func (r *ResolveCmd) Run(_ *Global, root *CLI) error {
	ctx := context.Background()
	app, err := Open(ctx, root.Config)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	kind := vcs.Kind(r.VCS)
	if !kind.Valid() {
		return errors.ValidationError(fmt.Sprintf("unknown vcs %q", r.VCS)).Build()
	}
	versions, err := app.Versions(kind)
	if err != nil {
		return err
	}
	fmt.Println(versions.ForURL(ctx, r.URL))
	return nil
}
