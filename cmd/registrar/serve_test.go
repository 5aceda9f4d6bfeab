package main

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunShutdownGivesEachStepItsOwnDeadline(t *testing.T) {
	var saveErr error
	var ran []string
	err := runShutdown(zap.NewNop(),
		shutdownStep{name: "notifications", timeout: 20 * time.Millisecond, run: func(ctx context.Context) error {
			ran = append(ran, "notifications")
			<-ctx.Done()
			return nil
		}},
		shutdownStep{name: "snapshot", timeout: time.Second, run: func(ctx context.Context) error {
			ran = append(ran, "snapshot")
			saveErr = ctx.Err()
			return nil
		}},
	)

	require.NoError(t, err)
	assert.Equal(t, []string{"notifications", "snapshot"}, ran)
	assert.NoError(t, saveErr, "a slow drain must not expire the save context")
}

func TestRunShutdownReportsFailedSteps(t *testing.T) {
	boom := errors.New("disk full")
	var after bool
	err := runShutdown(zap.NewNop(),
		shutdownStep{name: "snapshot", timeout: time.Second, run: func(context.Context) error { return boom }},
		shutdownStep{name: "cleanup", timeout: time.Second, run: func(context.Context) error {
			after = true
			return nil
		}},
	)

	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "snapshot")
	assert.True(t, after, "later steps still run")
}

func TestServeFailsWhenPortIsTaken(t *testing.T) {
	taken, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = taken.Close() })
	port := taken.Addr().(*net.TCPAddr).Port

	t.Setenv("DATA_BACKEND", "csv")
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("PORT", strconv.Itoa(port))

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	done := make(chan error, 1)
	go func() { done <- runServe(cmd, nil) }()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "serve http")
	case <-time.After(5 * time.Second):
		t.Fatal("serve kept running on a taken port")
	}
}
