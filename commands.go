package matrix

import (
	"fmt"
	"io"

	"github.com/ethereum-optimism/infra/op-matrix/combination"
	"github.com/ethereum-optimism/infra/op-matrix/configtree"
	"github.com/ethereum-optimism/infra/op-matrix/reporting"
	"github.com/ethereum-optimism/infra/op-matrix/runner"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// Plan prints the configuration tree at path and the configurations it
// expands to, without running anything.
func Plan(w io.Writer, path string) ([]types.TestConfiguration, error) {
	tree, err := configtree.Load(path)
	if err != nil {
		return nil, NewRuntimeError(err)
	}
	configs := combination.Generate(tree)
	fmt.Fprintf(w, "%s\n", reporting.FormatConfigTree(tree))
	reporting.RenderPlan(w, configs)
	return configs, nil
}

// Parse prints the result tree of a single report file. Failed or errored
// cases make it return a TestFailureError.
func Parse(w io.Writer, schemaName, path string) (*types.ResultTree, error) {
	schema, err := runner.ResolveSchema(schemaName)
	if err != nil {
		return nil, NewRuntimeError(err)
	}
	parser, err := runner.NewXMLParser(schema)
	if err != nil {
		return nil, NewRuntimeError(err)
	}
	tree, err := parser.ParseFile(path, path)
	if err != nil {
		return nil, NewRuntimeError(err)
	}
	fmt.Fprintf(w, "%s\n", reporting.FormatResultTree(tree, true))

	counts := tree.Counts()
	fmt.Fprintf(w, "%d cases: %d passed, %d failed, %d skipped, %d errored\n",
		counts.Total, counts.Passed, counts.Failed, counts.Skipped, counts.Errored)
	if tree.Status().IsFailure() {
		return tree, NewTestFailureError(fmt.Sprintf("%d failed, %d errored", counts.Failed, counts.Errored))
	}
	return tree, nil
}
