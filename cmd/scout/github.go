package scout

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/redactyl/scout/internal/engine"
	"github.com/redactyl/scout/internal/github"
)

type githubFlags struct {
	orgs           []string
	users          []string
	include        []string
	exclude        []string
	allow          []string
	deny           []string
	archived       bool
	forks          bool
	disabled       bool
	excludePrivate bool
	maxRepos       int
	cloneDir       string
	keepClones     bool
	noBlobless     bool
	repoRules      bool
	apiURL         string
	apiAttempts    int
	cloneAttempts  int
	cloneTimeout   time.Duration
}

func newGitHubCmd(o *rootOptions) *cobra.Command {
	var gf githubFlags
	cmd := &cobra.Command{
		Use:   "github [owner...]",
		Short: "Scan every repository of GitHub organizations or users",
		Long: `List the repositories of each owner, clone them into temporary workspaces
and scan each clone. Owners are given with --org/--user, as "org:name" or
"user:name" arguments, or under github.owners in the config file.

The token is read from SCOUT_GITHUB_TOKEN, GITHUB_TOKEN or GH_TOKEN.`,
		Example: `  scout github --org acme
  scout github --user octocat --include 'octocat/*-api' --json
  scout github org:acme user:octocat --max-repos 50 --threads 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := o.loadLayers(".")
			if err != nil {
				return usageError("config: %w", err)
			}
			if err := o.validateOutput(l); err != nil {
				return err
			}
			owners, err := gf.owners(args, l)
			if err != nil {
				return usageError("%w", err)
			}
			if len(owners) == 0 {
				return usageError("no owners given; use --org, --user or github.owners")
			}
			cfg, err := o.engineConfig(l, func(c *engine.Config) { gf.apply(cmd, c) })
			if err != nil {
				return usageError("config: %w", err)
			}

			lopts := github.DefaultListerOptions()
			if err := l.merged.ApplyLister(&lopts); err != nil {
				return usageError("config: %w", err)
			}
			if gf.apiURL != "" {
				lopts.BaseURL = gf.apiURL
			}
			if gf.apiAttempts > 0 {
				lopts.MaxAttempts = gf.apiAttempts
			}
			if gf.excludePrivate {
				lopts.IncludePrivate = false
			}
			lopts.Logger = o.log

			token := o.env.GetString("github_token")
			lister, err := github.NewLister(token, lopts)
			if err != nil {
				return usageError("%w", err)
			}
			if token == "" {
				o.log.Warn("no GitHub token set; only public repositories are listed and rate limits are low")
			}

			j := job{
				layers:       l,
				cfg:          cfg,
				baselinePath: o.baselinePath(l),
				req: engine.Request{
					Owners: owners,
					Rules:  o.ruleSources(l, ""),
				},
				opts: []engine.Option{
					engine.WithLister(lister),
					engine.WithCloner(github.NewCloner(token, cfg.Clone.Blobless)),
				},
				stateRoot: ".",
			}
			j.req.Baseline = o.loadBaseline(j.baselinePath)
			res, runErr := o.execute(cmd.Context(), j)
			return o.finish(j, res, runErr, false, nil)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&gf.orgs, "org", nil, "organization to scan (repeatable)")
	f.StringSliceVar(&gf.users, "user", nil, "user to scan (repeatable)")
	f.StringSliceVar(&gf.include, "include", nil, "keep only repositories whose owner/name matches a glob")
	f.StringSliceVar(&gf.exclude, "exclude", nil, "drop repositories whose owner/name matches a glob")
	f.StringSliceVar(&gf.allow, "allow", nil, "scan only these owner/name repositories")
	f.StringSliceVar(&gf.deny, "deny", nil, "never scan these owner/name repositories")
	f.BoolVar(&gf.archived, "archived", false, "include archived repositories")
	f.BoolVar(&gf.forks, "forks", false, "include forks")
	f.BoolVar(&gf.disabled, "disabled", false, "include disabled repositories")
	f.BoolVar(&gf.excludePrivate, "exclude-private", false, "skip private repositories")
	f.IntVar(&gf.maxRepos, "max-repos", 0, "scan at most this many repositories (0 = all)")
	f.StringVar(&gf.cloneDir, "clone-dir", "", "parent directory for clone workspaces (default: system temp)")
	f.BoolVar(&gf.keepClones, "keep-clones", false, "leave clones on disk after the run")
	f.BoolVar(&gf.noBlobless, "no-blobless", false, "clone full history objects instead of a blobless clone")
	f.BoolVar(&gf.repoRules, "repo-rules", false, "merge each repository's own .scout/rules.yaml")
	f.StringVar(&gf.apiURL, "api-url", "", "GitHub API base URL, e.g. for GitHub Enterprise")
	f.IntVar(&gf.apiAttempts, "api-attempts", 0, "attempts per API page (default 5)")
	f.IntVar(&gf.cloneAttempts, "clone-attempts", 0, "attempts per clone (default 3)")
	f.DurationVar(&gf.cloneTimeout, "clone-timeout", 0, "timeout of one clone attempt")
	return cmd
}

func (gf githubFlags) owners(args []string, l layers) ([]github.Owner, error) {
	var out []github.Owner
	for _, n := range gf.orgs {
		out = append(out, github.Owner{Kind: github.OwnerOrg, Name: n})
	}
	for _, n := range gf.users {
		out = append(out, github.Owner{Kind: github.OwnerUser, Name: n})
	}
	specs := args
	if len(out) == 0 && len(specs) == 0 && l.merged.GitHub != nil {
		specs = l.merged.GitHub.Owners
	}
	for _, s := range specs {
		ow, err := github.ParseOwner(s)
		if err != nil {
			return nil, err
		}
		out = append(out, ow)
	}
	return out, nil
}

func (gf githubFlags) apply(cmd *cobra.Command, c *engine.Config) {
	c.Filter.Include = append(c.Filter.Include, gf.include...)
	c.Filter.Exclude = append(c.Filter.Exclude, gf.exclude...)
	c.Filter.Allow = append(c.Filter.Allow, gf.allow...)
	c.Filter.Deny = append(c.Filter.Deny, gf.deny...)
	flags := cmd.Flags()
	if flags.Changed("archived") {
		c.Filter.IncludeArchived = gf.archived
	}
	if flags.Changed("forks") {
		c.Filter.IncludeForks = gf.forks
	}
	if flags.Changed("disabled") {
		c.Filter.IncludeDisabled = gf.disabled
	}
	if gf.excludePrivate {
		c.Filter.ExcludePrivate = true
	}
	if gf.maxRepos > 0 {
		c.Filter.MaxRepos = gf.maxRepos
	}
	if gf.cloneDir != "" {
		c.Clone.Dir = gf.cloneDir
	}
	if gf.keepClones {
		c.Clone.Retain = true
	}
	if gf.noBlobless {
		c.Clone.Blobless = false
	}
	if gf.repoRules {
		c.RepoRules = true
	}
	if gf.cloneAttempts > 0 {
		c.Clone.Retry.Attempts = gf.cloneAttempts
	}
	if gf.cloneTimeout > 0 {
		c.Clone.Retry.Timeout = gf.cloneTimeout
	}
}
