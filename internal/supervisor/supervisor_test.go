package supervisor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vk/omnibuild/internal/supervisor"
	"github.com/vk/omnibuild/internal/testutil"
)

func mainFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "main.js")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestSupervisor_KillsBeforeEachRespawn(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	starter := testutil.NewFakeStarter()
	main := mainFile(t, "")
	s := supervisor.New(starter, supervisor.Command{Executable: "node", Main: main, Args: []string{"--inspect"}})

	// --- Act ---
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Restart(context.Background()))
	}

	// --- Assert ---
	require.Equal(t, []string{"start 1", "kill 1", "start 2", "kill 2", "start 3"}, starter.Events())
	require.Equal(t, 3, s.Starts())

	spec := starter.Processes()[2].Spec
	require.Equal(t, "node", spec.Path)
	require.Equal(t, []string{main, "--inspect"}, spec.Args)

	select {
	case exit := <-s.Exits():
		t.Fatalf("restart was reported as an unexpected exit: %+v", exit)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSupervisor_UnexpectedExitIsReported(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	starter := testutil.NewFakeStarter()
	s := supervisor.New(starter, supervisor.Command{Executable: "node", Main: mainFile(t, "")})
	require.NoError(t, s.Restart(context.Background()))

	// --- Act ---
	starter.Processes()[0].Exit(errors.New("crashed"))

	// --- Assert ---
	select {
	case exit := <-s.Exits():
		require.Equal(t, 1, exit.Pid)
		require.Equal(t, 1, exit.Code)
		require.EqualError(t, exit.Err, "crashed")
	case <-time.After(2 * time.Second):
		t.Fatal("unexpected exit was not reported")
	}
}

func TestSupervisor_StopIsNotReported(t *testing.T) {
	t.Parallel()

	starter := testutil.NewFakeStarter()
	s := supervisor.New(starter, supervisor.Command{Executable: "node", Main: mainFile(t, "")})
	require.NoError(t, s.Restart(context.Background()))

	s.Stop()
	s.Stop()

	require.Equal(t, []string{"start 1", "kill 1"}, starter.Events())
	select {
	case exit := <-s.Exits():
		t.Fatalf("stop was reported as an unexpected exit: %+v", exit)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSupervisor_MissingMainFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	starter := testutil.NewFakeStarter()
	missing := filepath.Join(t.TempDir(), "dist", "main.js")
	s := supervisor.New(starter, supervisor.Command{Executable: "node", Main: missing})

	// --- Act ---
	err := s.Restart(context.Background())

	// --- Assert ---
	var launchErr *supervisor.LaunchError
	require.True(t, errors.As(err, &launchErr), "expected LaunchError, got %v", err)
	require.Equal(t, missing, launchErr.Main)
	require.Empty(t, starter.Events())
}

func TestSupervisor_RealProcessExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("runs a POSIX shell script")
	}
	t.Parallel()

	// --- Arrange ---
	s := supervisor.New(supervisor.ExecStarter{}, supervisor.Command{
		Executable: "sh",
		Main:       mainFile(t, "exit 3\n"),
		Env:        os.Environ(),
	})

	// --- Act ---
	require.NoError(t, s.Restart(context.Background()))

	// --- Assert ---
	select {
	case exit := <-s.Exits():
		require.Equal(t, 3, exit.Code)
	case <-time.After(10 * time.Second):
		t.Fatal("child exit was not reported")
	}
}
