package github

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records gh invocations and returns scripted results.
type fakeRunner struct {
	calls []string
	fail  map[string]error // substring of args -> error
}

func (f *fakeRunner) run(_ context.Context, _ string, stdin string, args ...string) ([]byte, error) {
	call := strings.Join(args, " ")
	f.calls = append(f.calls, call)
	for substr, err := range f.fail {
		if strings.Contains(call, substr) {
			return nil, err
		}
	}
	_ = stdin
	return []byte("{}"), nil
}

func testOptions() Options {
	return Options{
		Repo:               "acme/widget",
		Visibility:         "private",
		DefaultBranch:      "main",
		BranchProtection:   true,
		RequiredSignatures: true,
	}
}

func TestCreateRepo(t *testing.T) {
	f := &fakeRunner{}
	s := &Setup{run: f.run}

	err := s.CreateRepo(context.Background(), "/work/widget", testOptions())
	require.NoError(t, err)

	require.Len(t, f.calls, 1)
	assert.Contains(t, f.calls[0], "repo create acme/widget")
	assert.Contains(t, f.calls[0], "--private")
	assert.Contains(t, f.calls[0], "--remote origin")
	assert.Contains(t, f.calls[0], "--push")
}

func TestCreateRepoFailureIsFatal(t *testing.T) {
	f := &fakeRunner{fail: map[string]error{"repo create": errors.New("name already exists")}}
	s := &Setup{run: f.run}

	err := s.CreateRepo(context.Background(), "/work/widget", testOptions())
	assert.ErrorContains(t, err, "acme/widget")
}

func TestHardenAppliesBothSteps(t *testing.T) {
	f := &fakeRunner{}
	s := &Setup{run: f.run}

	warnings := s.Harden(context.Background(), "/work/widget", testOptions())
	assert.Empty(t, warnings)

	require.Len(t, f.calls, 2)
	assert.Contains(t, f.calls[0], "repos/acme/widget/branches/main/protection")
	assert.Contains(t, f.calls[0], "PUT")
	assert.Contains(t, f.calls[1], "required_signatures")
	assert.Contains(t, f.calls[1], "POST")
}

func TestHardenFailuresAreWarningsNotErrors(t *testing.T) {
	f := &fakeRunner{fail: map[string]error{"required_signatures": errors.New("404")}}
	s := &Setup{run: f.run}

	warnings := s.Harden(context.Background(), "/work/widget", testOptions())

	// Branch protection succeeded, required signatures warned; the
	// bootstrap as a whole is not failed by remote hardening.
	require.Len(t, warnings, 1)
	assert.Equal(t, "required signatures", warnings[0].Step)
	assert.Contains(t, warnings[0].String(), "404")
}

func TestHardenRespectsDisabledSteps(t *testing.T) {
	f := &fakeRunner{}
	s := &Setup{run: f.run}

	opts := testOptions()
	opts.BranchProtection = false
	opts.RequiredSignatures = false

	warnings := s.Harden(context.Background(), "/work/widget", opts)
	assert.Empty(t, warnings)
	assert.Empty(t, f.calls)
}
