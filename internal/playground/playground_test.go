package playground

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunCapturesPrintedOutput(t *testing.T) {
	r := NewRunner(DefaultTimeout)
	res, err := r.Run(context.Background(), `import "fmt"
fmt.Println("hello from the playground")`)
	require.NoError(t, err)
	require.Contains(t, res.Stdout, "hello from the playground")
}

func TestRunReturnsFinalExpressionValue(t *testing.T) {
	r := NewRunner(DefaultTimeout)
	res, err := r.Run(context.Background(), `21 * 2`)
	require.NoError(t, err)
	require.Equal(t, "42", res.Value)
}

func TestRunRejectsEmptySnippet(t *testing.T) {
	r := NewRunner(DefaultTimeout)
	_, err := r.Run(context.Background(), "   \n\t")
	require.Error(t, err)
}

func TestRunRejectsBlockedImports(t *testing.T) {
	r := NewRunner(DefaultTimeout)
	snippets := []string{
		`import "os"
os.Getenv("HOME")`,
		`import (
	"fmt"
	"net/http"
)
fmt.Println(http.StatusOK)`,
	}
	for _, code := range snippets {
		_, err := r.Run(context.Background(), code)
		require.Error(t, err)
		require.Contains(t, err.Error(), "blocked packages")
	}
}

func TestRunAllowsAliasedSandboxImports(t *testing.T) {
	r := NewRunner(DefaultTimeout)
	res, err := r.Run(context.Background(), `import (
	s "strings"
)
s.ToUpper("quiet")`)
	require.NoError(t, err)
	require.Equal(t, "QUIET", res.Value)
}

func TestRunSurfacesEvaluationErrors(t *testing.T) {
	r := NewRunner(DefaultTimeout)
	_, err := r.Run(context.Background(), `this is not go`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "snippet failed")
}

func TestRunTimesOutRunawaySnippets(t *testing.T) {
	r := NewRunner(100 * time.Millisecond)
	_, err := r.Run(context.Background(), `for { }`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")
}
