package integration_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nbkit/nbkit/internal/app"
	"github.com/nbkit/nbkit/pkg/types"
)

var _ = Describe("Notebook persistence", func() {
	It("saves edits back to the server and reloads them", func() {
		jupyter.SeedNotebook("work/edit.ipynb", &types.Notebook{
			Cells: []types.Cell{
				{CellType: types.CellTypeCode, Source: "x = 1"},
			},
			NBFormat:      4,
			NBFormatMinor: 2,
		})

		a := app.New(testConfig())
		defer a.Close()
		Expect(a.OpenNotebook(ctx, "work/edit.ipynb")).To(Succeed())

		a.Document.InsertBelow(0)
		cell, ok := a.Document.CellAt(1)
		Expect(ok).To(BeTrue())
		a.Document.SetSource(cell.ID, "x + 1")
		a.Document.SetCellType(1, types.CellTypeMarkdown)

		Expect(a.Document.Save(ctx)).To(Succeed())

		b := app.New(testConfig())
		defer b.Close()
		Expect(b.OpenNotebook(ctx, "work/edit.ipynb")).To(Succeed())

		Expect(b.Document.Len()).To(Equal(2))
		first, _ := b.Document.CellAt(0)
		Expect(first.Source).To(Equal("x = 1"))
		second, _ := b.Document.CellAt(1)
		Expect(second.Source).To(Equal("x + 1"))
		Expect(second.CellType).To(Equal(types.CellTypeMarkdown))
	})

	It("synthesizes one empty code cell for an empty notebook", func() {
		jupyter.SeedNotebook("work/empty.ipynb", &types.Notebook{
			NBFormat:      4,
			NBFormatMinor: 2,
		})

		a := app.New(testConfig())
		defer a.Close()
		Expect(a.OpenNotebook(ctx, "work/empty.ipynb")).To(Succeed())

		Expect(a.Document.Len()).To(Equal(1))
		cell, _ := a.Document.CellAt(0)
		Expect(cell.CellType).To(Equal(types.CellTypeCode))
		Expect(cell.Source).To(BeEmpty())
		Expect(cell.ID).NotTo(BeEmpty())
	})

	It("resets transient execution state on load", func() {
		jupyter.SeedNotebook("work/stale.ipynb", &types.Notebook{
			Cells: []types.Cell{
				{
					CellType:       types.CellTypeCode,
					Source:         "print(1)",
					ExecutionCount: types.ExecutionCount{N: 9},
					Outputs:        []types.Output{types.NewStreamOutput("stdout", "1\n")},
				},
			},
			NBFormat:      4,
			NBFormatMinor: 2,
		})

		a := app.New(testConfig())
		defer a.Close()
		Expect(a.OpenNotebook(ctx, "work/stale.ipynb")).To(Succeed())

		cell, _ := a.Document.CellAt(0)
		Expect(cell.Outputs).To(BeEmpty())
		Expect(cell.ExecutionCount).To(Equal(types.ExecutionCount{}))
	})

	It("rejects opening a missing notebook", func() {
		a := app.New(testConfig())
		defer a.Close()
		Expect(a.OpenNotebook(ctx, "work/nope.ipynb")).NotTo(Succeed())
	})
})
