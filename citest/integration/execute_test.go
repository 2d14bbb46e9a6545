package integration_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nbkit/nbkit/internal/app"
	"github.com/nbkit/nbkit/pkg/types"
)

var _ = Describe("Execution", func() {
	var a *app.App

	BeforeEach(func() {
		jupyter.SeedNotebook("work/demo.ipynb", &types.Notebook{
			Cells: []types.Cell{
				{CellType: types.CellTypeCode, Source: "print('hi')"},
			},
			NBFormat:      4,
			NBFormatMinor: 2,
		})

		a = app.New(testConfig())
		Expect(a.OpenNotebook(ctx, "work/demo.ipynb")).To(Succeed())
		Expect(a.StartSession(ctx, "default")).To(Succeed())
	})

	AfterEach(func() {
		a.Close()
	})

	It("starts a session with the configured default kernel", func() {
		sess, ok := a.Sessions.Current()
		Expect(ok).To(BeTrue())
		Expect(sess.Kernel.Name).To(Equal("python3"))
		Expect(a.Registry.List()).To(ConsistOf(sess.Kernel))
	})

	It("runs a cell and folds the reply stream into its outputs", func() {
		cell, ok := a.Document.CellAt(0)
		Expect(ok).To(BeTrue())

		Expect(a.Controller.SubmitCell(cell.Source, cell.ID)).To(Succeed())

		Eventually(func() types.ExecutionCount {
			c, _ := a.Document.CellByID(cell.ID)
			return c.ExecutionCount
		}, 2*time.Second).Should(Equal(types.ExecutionCount{N: 1}))

		updated, _ := a.Document.CellByID(cell.ID)
		Expect(updated.Outputs).To(HaveLen(2))

		stream, ok := updated.Outputs[0].(*types.StreamOutput)
		Expect(ok).To(BeTrue())
		Expect(stream.Text).To(Equal("print('hi')\n"))

		result, ok := updated.Outputs[1].(*types.DataOutput)
		Expect(ok).To(BeTrue())
		Expect(result.Data).To(HaveKeyWithValue("text/plain", "print('hi')"))
	})

	It("tracks the kernel execution state through busy and idle", func() {
		cell, _ := a.Document.CellAt(0)
		Expect(a.Controller.SubmitCell(cell.Source, cell.ID)).To(Succeed())

		Eventually(a.Dispatcher.KernelStatus, 2*time.Second).Should(Equal("idle"))
	})

	It("round trips a stdin prompt", func() {
		a.Document.SetSource(mustCellID(a), "input()")
		cell, _ := a.Document.CellAt(0)
		Expect(a.Controller.SubmitCell(cell.Source, cell.ID)).To(Succeed())

		Eventually(func() bool {
			_, ok := a.Dispatcher.PendingPrompt()
			return ok
		}, 2*time.Second).Should(BeTrue())

		prompt, _ := a.Dispatcher.PendingPrompt()
		Expect(prompt.CellID).To(Equal(cell.ID))
		Expect(prompt.Prompt).To(Equal("? "))

		Expect(a.Controller.SubmitPrompt(prompt.CellID, prompt.Parent, "Ada")).To(Succeed())

		Eventually(func() string {
			c, _ := a.Document.CellByID(cell.ID)
			for _, out := range c.Outputs {
				if s, ok := out.(*types.StreamOutput); ok {
					return s.Text
				}
			}
			return ""
		}, 2*time.Second).Should(Equal("Ada\n"))

		_, pending := a.Dispatcher.PendingPrompt()
		Expect(pending).To(BeFalse())
	})

	It("answers inspect requests out of band", func() {
		Expect(a.Controller.SubmitInspect("len", 3)).To(Succeed())

		Eventually(a.Dispatcher.InspectText, 2*time.Second).
			Should(Equal("Docstring: help for len"))

		// Inspect never touches cell state.
		cell, _ := a.Document.CellAt(0)
		Expect(cell.Outputs).To(BeEmpty())
	})

	It("replaces the session when switching kernels", func() {
		first, _ := a.Sessions.Current()

		Expect(a.StartSession(ctx, "julia-1.10")).To(Succeed())

		second, ok := a.Sessions.Current()
		Expect(ok).To(BeTrue())
		Expect(second.ID).NotTo(Equal(first.ID))
		Expect(second.Kernel.Name).To(Equal("julia-1.10"))
		Expect(a.Registry.List()).To(ConsistOf(second.Kernel))
	})

	It("shuts kernels down on request", func() {
		sess, _ := a.Sessions.Current()
		Expect(a.Sessions.StopKernel(ctx)).To(Succeed())
		Expect(jupyter.Kernels()).NotTo(ContainElement(sess.Kernel.ID))
	})
})

func mustCellID(a *app.App) string {
	cell, ok := a.Document.CellAt(0)
	Expect(ok).To(BeTrue())
	return cell.ID
}
