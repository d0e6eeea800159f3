package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"whois/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("stdout closed") }

func TestBatchRunner_Run(t *testing.T) {
	svc := NewDirectoryService(DirectoryDeps{Repo: repository.NewMemoryDirectoryRepository()})
	var out bytes.Buffer
	runner := NewBatchRunner(svc, &out, nil)

	err := runner.Run(context.Background(), []string{
		"ghost",
		"alice?location=RB-336",
		"alice?location",
		"alice?Nickname",
		"alice?",
		"alice?location",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		TextUserNotKnown,
		TextOK,
		"RB-336",
		TextNoSuchField,
		TextOK,
		TextUserNotKnown,
	}, strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n"))
}

func TestBatchRunner_WriteFailure(t *testing.T) {
	svc := NewDirectoryService(DirectoryDeps{Repo: repository.NewMemoryDirectoryRepository()})
	runner := NewBatchRunner(svc, failingWriter{}, nil)

	err := runner.Run(context.Background(), []string{"alice"})
	assert.Error(t, err)
}

func TestBatchRunner_Cancelled(t *testing.T) {
	svc := NewDirectoryService(DirectoryDeps{Repo: repository.NewMemoryDirectoryRepository()})
	var out bytes.Buffer
	runner := NewBatchRunner(svc, &out, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, runner.Run(ctx, []string{"alice"}), context.Canceled)
	assert.Empty(t, out.String())
}
