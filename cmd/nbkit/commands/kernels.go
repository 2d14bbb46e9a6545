package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nbkit/nbkit/internal/api"
)

var kernelsCmd = &cobra.Command{
	Use:   "kernels",
	Short: "List kernels running on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client := api.NewClient(cfg.ServerURL, cfg.Token)
		kernels, err := client.ListKernels(cmd.Context())
		if err != nil {
			return err
		}
		if len(kernels) == 0 {
			fmt.Println("No kernels running.")
			return nil
		}
		for _, kernel := range kernels {
			fmt.Printf("%s  %s\n", kernel.ID, kernel.Name)
		}
		return nil
	},
}

var kernelsKillCmd = &cobra.Command{
	Use:   "kill <kernel-id>",
	Short: "Shut down a kernel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client := api.NewClient(cfg.ServerURL, cfg.Token)
		if err := client.DeleteKernel(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Kernel shut down.")
		return nil
	},
}

func init() {
	kernelsCmd.AddCommand(kernelsKillCmd)
}
