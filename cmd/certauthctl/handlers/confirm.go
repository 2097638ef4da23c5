package handlers

import "github.com/charmbracelet/huh"

// askRollbackConfirmation prompts the operator before any file is
// restored. Rollback touches configs on every head node, image and live
// compute node, so a stray invocation should have one chance to stop.
func askRollbackConfirmation() (bool, error) {
	confirmed := false

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Roll back certificate-auth configuration?").
				Description("Managed config files on every head node, software image and live compute node are restored to their pre-write state, then services restart.").
				Affirmative("Roll back").
				Negative("Cancel").
				Value(&confirmed),
		),
	)

	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}
