package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/jointab/internal/cli/testutil"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "join", "match", "runs", "dag", "init", "version", "formats", "completion"} {
		assert.Contains(t, names, want)
	}

	for _, flag := range []string{"config", "pipeline", "state", "output", "verbose", "timezone", "fanout-warn-ratio", "default-join-type"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	_, _, err := execute(t, "dag", "--output", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output")
}

func TestRootCommand_Formats(t *testing.T) {
	t.Chdir(t.TempDir())

	out, _, err := execute(t, "formats")
	require.NoError(t, err)
	assert.Contains(t, out, "csv\n")
	assert.Contains(t, out, "parquet\n")
}

func TestRootCommand_Completion(t *testing.T) {
	out, _, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "jointab")
}

func TestRootCommand_RunThenRuns(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)

	out, _, err := execute(t, "run", "--output", "markdown")
	require.NoError(t, err)
	testutil.AssertNoANSI(t, out)
	assert.Contains(t, out, "| enriched | left | customer_id=id | 3 | 2 | 1 | 0 |")
	assert.Contains(t, out, "wrote "+filepath.Join(dir, "out", "report.csv"))

	data, err := os.ReadFile(filepath.Join(dir, "out", "report.csv"))
	require.NoError(t, err)
	assert.Equal(t, "order_id,customer_id,amount,name\n1,10,5,Ann\n2,11,7,Bob\n3,99,1,\n", string(data))
	assert.FileExists(t, filepath.Join(dir, ".jointab", "state.db"))

	out, _, err = execute(t, "runs", "--output", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "completed"`)
}

func TestRootCommand_Join(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)

	out, _, err := execute(t, "join", "data/orders.csv", "data/customers.csv",
		"--left-on", "customer_id", "--right-on", "id", "--output", "json")
	require.NoError(t, err)
	assert.Equal(t, "[\n"+
		"  {\"order_id\": 1, \"customer_id\": 10, \"amount\": 5, \"name\": \"Ann\"},\n"+
		"  {\"order_id\": 2, \"customer_id\": 11, \"amount\": 7, \"name\": \"Bob\"}\n"+
		"]\n", out)

	_, _, err = execute(t, "join", "data/orders.csv", "data/customers.csv",
		"--type", "left", "--left-on", "customer_id", "--right-on", "id", "--out", "out/joined.csv")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "out", "joined.csv"))
	require.NoError(t, err)
	assert.Equal(t, "order_id,customer_id,amount,name\n1,10,5,Ann\n2,11,7,Bob\n3,99,1,\n", string(data))
}

func TestRootCommand_JoinWithoutSharedColumns(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)

	_, _, err := execute(t, "join", "data/orders.csv", "data/customers.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no shared")
}

func TestRootCommand_Match(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)

	out, _, err := execute(t, "match", "data/orders.csv", "data/orders.csv", "--output", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "| order_id | order_id | number | number | exact_name_type_match | true |")
}
