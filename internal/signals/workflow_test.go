package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

func TestOptimizeWorkflow(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	store := seededStore()
	env.RegisterActivity(&Activities{Optimizer: NewOptimizer(store, Config{})})

	env.ExecuteWorkflow(OptimizeWorkflow)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var report Report
	require.NoError(t, env.GetWorkflowResult(&report))
	assert.Equal(t, 1, report.PreviousVersion)
	assert.Equal(t, 2, report.NewVersion)
}

func TestOptimizeWorkflow_BusyIsNotRetried(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	store := seededStore()
	store.activateErr = ErrOptimizerBusy
	env.RegisterActivity(&Activities{Optimizer: NewOptimizer(store, Config{})})

	env.ExecuteWorkflow(OptimizeWorkflow)

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "optimizer already running")
}
