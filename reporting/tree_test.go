package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-matrix/configtree"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

func TestFormatResultTree(t *testing.T) {
	root := types.NewSuite("Master")
	math := types.NewSuite("math")
	require.NoError(t, math.Append(types.NewCase("add", types.TestStatusPass, "")))
	require.NoError(t, math.Append(types.NewCase("div", types.TestStatusFail, "want 2\ngot 3")))
	require.NoError(t, root.Append(math))
	require.NoError(t, root.Append(types.NewCase("smoke", types.TestStatusSkip, "")))
	tree := types.NewResultTree("opt=-O2", root)

	expected := "opt=-O2 [Master] ✗ fail\n" +
		"├── math/ ✗ fail\n" +
		"│   ├── add ✓ pass\n" +
		"│   └── div ✗ fail\n" +
		"│           want 2\n" +
		"│           got 3\n" +
		"└── smoke - skip\n"
	assert.Equal(t, expected, FormatResultTree(tree, true))
	assert.NotContains(t, FormatResultTree(tree, false), "want 2")
}

func TestFormatConfigTree(t *testing.T) {
	tree := configtree.New("build")
	require.NoError(t, tree.AddChild("", configtree.NewCategory("opt")))
	require.NoError(t, tree.AddChild("opt", configtree.NewKeyValue("O0", "-O0", true)))
	require.NoError(t, tree.AddChild("opt", configtree.NewKeyValue("O2", "-O2", false)))
	require.NoError(t, tree.AddChild("", configtree.NewCategory("san")))
	require.NoError(t, tree.AddChild("san", configtree.NewKeyValue("asan", "address", true)))

	expected := "build\n" +
		"├── opt/\n" +
		"│   ├── [x] O0 = \"-O0\"\n" +
		"│   └── [ ] O2 = \"-O2\"\n" +
		"└── san/\n" +
		"    └── [x] asan = \"address\"\n"
	assert.Equal(t, expected, FormatConfigTree(tree))
}
