package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load the snapshot and verify the registration invariants",
	Long: `Loads the configured snapshot into memory and checks every registration
against its index, course, schedules and the AU cap. Exits non-zero when any
check fails.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, _ []string) error {
	rt, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	stats := rt.graph.Stats()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "users=%d students=%d courses=%d indexes=%d registrations=%d\n",
		stats.Users, stats.Students, stats.Courses, stats.Indexes, stats.Registrations)

	problems := rt.graph.Verify(rt.cfg.Registration.MaxAU)
	for _, p := range problems {
		fmt.Fprintln(out, p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d invariant violations", len(problems))
	}
	fmt.Fprintln(out, "ok")
	return nil
}
