package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// NewCloner prefers the git binary, which supports blob-less partial
// clones, and falls back to go-git when git is not on PATH.
func NewCloner(token string, blobless bool) Cloner {
	if p, err := exec.LookPath("git"); err == nil {
		return &CLICloner{Token: token, Blobless: blobless, GitPath: p}
	}
	return &GoGitCloner{Token: token}
}

// CLICloner shells out to git. The token travels as an http.extraheader
// set through GIT_CONFIG_* variables, never on the command line or in the
// remote URL.
type CLICloner struct {
	Token    string
	Blobless bool
	// Depth defaults to 1.
	Depth   int
	GitPath string
}

func (c *CLICloner) Clone(ctx context.Context, repo Repo, dest string) error {
	gitPath := c.GitPath
	if gitPath == "" {
		gitPath = "git"
	}
	depth := c.Depth
	if depth <= 0 {
		depth = 1
	}
	args := []string{"clone", "--quiet", "--depth", strconv.Itoa(depth), "--single-branch", "--no-tags"}
	if c.Blobless {
		args = append(args, "--filter=blob:none")
	}
	if repo.DefaultBranch != "" {
		args = append(args, "--branch", repo.DefaultBranch)
	}
	args = append(args, "--", repo.CloneURL, dest)

	cmd := exec.CommandContext(ctx, gitPath, args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GCM_INTERACTIVE=never")
	if c.Token != "" {
		cmd.Env = append(cmd.Env,
			"GIT_CONFIG_COUNT=1",
			"GIT_CONFIG_KEY_0=http.extraheader",
			"GIT_CONFIG_VALUE_0="+authHeader(c.Token),
		)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := scrub(strings.TrimSpace(stderr.String()), c.Token)
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("git clone %s: %s", repo.Key(), msg)
	}
	return nil
}

// GoGitCloner clones in-process. go-git has no partial clone support, so
// clones are shallow but carry blobs.
type GoGitCloner struct {
	Token string
	Depth int
}

func (c *GoGitCloner) Clone(ctx context.Context, repo Repo, dest string) error {
	depth := c.Depth
	if depth <= 0 {
		depth = 1
	}
	opts := &git.CloneOptions{
		URL:          repo.CloneURL,
		Depth:        depth,
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if repo.DefaultBranch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(repo.DefaultBranch)
	}
	if c.Token != "" {
		opts.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: c.Token}
	}
	if _, err := git.PlainCloneContext(ctx, dest, false, opts); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.New("go-git clone " + repo.Key() + ": " + scrub(err.Error(), c.Token))
	}
	return nil
}

func authHeader(token string) string {
	return "AUTHORIZATION: basic " + base64.StdEncoding.EncodeToString([]byte("x-access-token:"+token))
}

// scrub removes every form of the token that could show up in git output.
func scrub(s, token string) string {
	if token == "" {
		return s
	}
	for _, form := range []string{
		base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token)),
		token,
	} {
		s = strings.ReplaceAll(s, form, "***")
	}
	return s
}
