package functional

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

func aBuildFileWith(ctx context.Context, name, contents string) (context.Context, error) {
	state := getState(ctx)
	path := filepath.Join(state.workDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ctx, err
	}
	return ctx, os.WriteFile(path, []byte(contents), 0o644)
}

func aResourceContaining(ctx context.Context, name, contents string) (context.Context, error) {
	state := getState(ctx)
	path := filepath.Join(state.workDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ctx, err
	}
	return ctx, os.WriteFile(path, []byte(contents), 0o644)
}

func iRunYafpmBuildOn(ctx context.Context, name string) (context.Context, error) {
	state := getState(ctx)
	if state == nil {
		return ctx, fmt.Errorf("no test state; is the Before hook running?")
	}

	cmd := exec.Command(state.buildBin, "-P", state.storeDir, filepath.Join(state.workDir, name))
	cmd.Dir = state.workDir

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	state.stdout = stdout.String()
	state.stderr = stderr.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			state.exitCode = exitErr.ExitCode()
		} else {
			return ctx, fmt.Errorf("running yafpm-build: %w", err)
		}
	} else {
		state.exitCode = 0
	}
	return ctx, nil
}

func theExitCodeIs(ctx context.Context, expected int) error {
	state := getState(ctx)
	if state.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nstdout: %s\nstderr: %s",
			expected, state.exitCode, state.stdout, state.stderr)
	}
	return nil
}

func theOutputContains(ctx context.Context, substr string) error {
	state := getState(ctx)
	if !strings.Contains(state.stdout, substr) {
		return fmt.Errorf("expected stdout to contain %q, got: %s", substr, state.stdout)
	}
	return nil
}

func theErrorOutputContains(ctx context.Context, substr string) error {
	state := getState(ctx)
	if !strings.Contains(state.stderr, substr) {
		return fmt.Errorf("expected stderr to contain %q, got: %s", substr, state.stderr)
	}
	return nil
}

func theStoreContainsPackage(ctx context.Context, name, version string) error {
	state := getState(ctx)
	entries, err := os.ReadDir(state.storeDir)
	if err != nil {
		return fmt.Errorf("reading store dir: %w", err)
	}
	prefix := name + "-" + version + "-"
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			return nil
		}
	}
	return fmt.Errorf("store %s does not contain a package matching %q", state.storeDir, prefix)
}
