package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nbkit/nbkit/internal/app"
	"github.com/nbkit/nbkit/internal/event"
	"github.com/nbkit/nbkit/pkg/types"
)

var (
	execKernel  string
	execSave    bool
	execTimeout time.Duration
)

var execCmd = &cobra.Command{
	Use:   "exec <notebook>",
	Short: "Execute a notebook headlessly",
	Long: `Opens a notebook, starts a kernel session, runs every code cell in
order, and prints the text outputs. With --save the executed document is
written back to the server.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a := app.New(cfg)
		defer a.Close()

		ctx := cmd.Context()
		if err := a.OpenNotebook(ctx, args[0]); err != nil {
			return err
		}
		if err := a.StartSession(ctx, execKernel); err != nil {
			return err
		}

		// Wake on any cell update so completed executions are noticed promptly.
		updated := make(chan struct{}, 1)
		unsub := a.Bus.Subscribe(event.CellUpdated, func(event.Event) {
			select {
			case updated <- struct{}{}:
			default:
			}
		})
		defer unsub()

		for _, cell := range a.Document.Cells() {
			if cell.CellType != types.CellTypeCode || cell.Source == "" {
				continue
			}
			if err := a.Controller.SubmitCell(cell.Source, cell.ID); err != nil {
				return err
			}
			if err := waitForCell(ctx, a, cell.ID, updated); err != nil {
				return err
			}
			printCell(a, cell.ID)
		}

		if execSave {
			return a.Document.Save(ctx)
		}
		return nil
	},
}

func init() {
	execCmd.Flags().StringVar(&execKernel, "kernel", "default", "Kernelspec name")
	execCmd.Flags().BoolVar(&execSave, "save", false, "Save the executed notebook back to the server")
	execCmd.Flags().DurationVar(&execTimeout, "timeout", 30*time.Second, "Per-cell execution timeout")
}

// waitForCell blocks until the cell's execution finishes or the timeout
// elapses. A kernel that never replies would otherwise leave the cell
// running forever.
func waitForCell(ctx context.Context, a *app.App, cellID string, updated <-chan struct{}) error {
	deadline := time.NewTimer(execTimeout)
	defer deadline.Stop()

	for {
		cell, ok := a.Document.CellByID(cellID)
		if !ok || !cell.ExecutionCount.Running {
			return nil
		}
		select {
		case <-updated:
		case <-deadline.C:
			return fmt.Errorf("cell did not finish within %s", execTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// printCell prints the text renderings of a cell's outputs.
func printCell(a *app.App, cellID string) {
	cell, ok := a.Document.CellByID(cellID)
	if !ok {
		return
	}
	if !cell.ExecutionCount.Running && cell.ExecutionCount.N > 0 {
		fmt.Printf("[%d]:\n", cell.ExecutionCount.N)
	}
	for _, out := range cell.Outputs {
		switch o := out.(type) {
		case *types.StreamOutput:
			fmt.Print(o.Text)
		case *types.DataOutput:
			if text, ok := o.Data["text/plain"].(string); ok {
				fmt.Println(text)
			}
		case *types.ErrorOutput:
			fmt.Printf("%s: %s\n", o.EName, o.EValue)
		}
	}
}
