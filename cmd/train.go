package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campuseats/preptime/internal/model"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run one training pass over historical orders",
	Long:  "Fetches fulfilled orders from the configured store, fits the prediction model, and persists the resulting artifact.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		report := env.trainer.Run(ctx)

		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return eris.Wrap(err, "train: marshal report")
		}
		fmt.Println(string(out))

		if report.Status == model.TrainingStatusFailed {
			return eris.Errorf("training failed: %s", report.Reason)
		}

		zap.L().Info("training finished", zap.String("status", report.Status))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
}
