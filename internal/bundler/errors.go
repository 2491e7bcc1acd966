package bundler

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// BuildError is a failed build. Messages are the bundler's diagnostics,
// already formatted as file:line:column: text.
type BuildError struct {
	Task     string
	Messages []string
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("build of %s failed:\n%s", e.Task, strings.Join(e.Messages, "\n"))
}

func newBuildError(task string, msgs []api.Message) *BuildError {
	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		text := msg.Text
		if msg.Location != nil {
			text = fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
		}
		out = append(out, text)
	}
	return &BuildError{Task: task, Messages: out}
}
