package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Dispatch the configured actions and print the final state",
	Long: `Open the configured application (restoring the latest snapshot when
persistence.restore is set), dispatch every action of the 'actions' list in
order, print the resulting state as JSON and save a snapshot.

The first failing action stops the replay.`,
	Args: cobra.NoArgs,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	replayCmd.Flags().Bool("compact", false, "print the state without indentation")
	_ = replayCmd.MarkFlagRequired("config")
}

func runReplay(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	compact, _ := cmd.Flags().GetBool("compact")

	rt, err := loadRuntime(cmd.Context(), path, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	dispatchErr := func() error {
		for i, a := range rt.cfg.Actions {
			payload, err := a.PayloadJSON()
			if err != nil {
				return err
			}
			if err := rt.sess.Dispatch(cmd.Context(), a.Kind, payload); err != nil {
				return fmt.Errorf("action %d ('%s'): %w", i, a.Kind, err)
			}
		}
		rt.log.Infof("Replayed %d action(s) on store '%s'", len(rt.cfg.Actions), rt.sess.Name())
		return nil
	}()

	if closeErr := rt.close(); dispatchErr == nil && closeErr != nil {
		return closeErr
	}
	if dispatchErr != nil {
		return dispatchErr
	}

	snap, err := rt.sess.Snapshot()
	if err != nil {
		return err
	}
	if !compact {
		var v interface{}
		if err := json.Unmarshal(snap, &v); err == nil {
			if pretty, err := json.MarshalIndent(v, "", "  "); err == nil {
				snap = pretty
			}
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(snap))
	return nil
}
