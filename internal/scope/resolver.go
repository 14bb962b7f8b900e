package scope

import (
	"context"
	"fmt"
	"iter"
	"sync"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog/log"

	"github.com/ppiankov/awsinventory/internal/aws"
)

// Source tells how a scope's credentials were obtained.
type Source string

const (
	SourceDefault Source = "default"
	SourceProfile Source = "profile"
	SourceRole    Source = "assume-role"
)

const roleSessionName = "awsinventory"

// Scope is one authenticated AWS account.
type Scope struct {
	// Index is the position among authenticated scopes, starting at 0.
	Index  int
	ID     string
	Alias  string
	Source Source
	Config awssdk.Config
}

// Label renders the scope for reports and logs.
func (s Scope) Label() string {
	return Label(s.ID, s.Alias)
}

// Label renders an account as "alias (id)", or the bare id when there is
// no distinct alias.
func Label(id, alias string) string {
	if alias == "" || alias == id {
		return id
	}
	return fmt.Sprintf("%s (%s)", alias, id)
}

// Skipped is a candidate that was not collected: it failed authentication
// or its account was already covered (ErrDuplicateAccount).
type Skipped struct {
	Candidate string
	Err       error
}

// IdentityAPI is the minimal interface for caller identity lookups.
type IdentityAPI interface {
	GetCallerIdentity(ctx context.Context, input *sts.GetCallerIdentityInput, opts ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

type candidate struct {
	label   string
	source  Source
	profile string
	account string
}

// Resolver turns a Selection into authenticated scopes.
type Resolver struct {
	sel    Selection
	region string

	candidates []candidate

	loadConfig  func(ctx context.Context, profile, region string) (awssdk.Config, error)
	newIdentity func(awssdk.Config) IdentityAPI
	assumeRole  func(base awssdk.Config, roleARN, externalID string) awssdk.CredentialsProvider

	mu      sync.Mutex
	skipped []Skipped
}

// NewResolver validates the selection and plans its candidates. region is
// the home region for credential and identity calls; empty uses the
// profile's. Errors wrap ErrInvalidSelection.
func NewResolver(sel Selection, region string) (*Resolver, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	candidates, err := candidatesFor(sel, ListProfiles)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		sel:        sel,
		region:     region,
		candidates: candidates,
		loadConfig: aws.LoadConfig,
		newIdentity: func(cfg awssdk.Config) IdentityAPI {
			return sts.NewFromConfig(cfg)
		},
		assumeRole: assumeRoleProvider,
	}, nil
}

// Candidates returns the number of planned scopes.
func (r *Resolver) Candidates() int {
	return len(r.candidates)
}

// Skipped returns the candidates that failed authentication so far.
func (r *Resolver) Skipped() []Skipped {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Skipped, len(r.skipped))
	copy(out, r.skipped)
	return out
}

// Scopes yields authenticated scopes lazily, in selection order. A
// candidate that fails authentication is logged, recorded and skipped, as
// is one that reaches an account an earlier scope already yielded.
func (r *Resolver) Scopes(ctx context.Context) iter.Seq[Scope] {
	return func(yield func(Scope) bool) {
		candidates := r.candidates
		var base *awssdk.Config
		covered := make(map[string]string)
		index := 0
		for _, c := range candidates {
			if ctx.Err() != nil {
				return
			}

			var (
				cfg awssdk.Config
				err error
			)
			if c.source == SourceRole {
				if base == nil {
					b, berr := r.loadConfig(ctx, r.sel.BaseProfile, r.region)
					if berr != nil {
						// Without base credentials no role can be assumed.
						for _, rest := range candidates {
							r.skip(rest.label, fmt.Errorf("load base credentials: %w", berr))
						}
						return
					}
					base = &b
				}
				cfg = r.roleConfig(*base, c.account)
			} else {
				cfg, err = r.loadConfig(ctx, c.profile, r.region)
				if err != nil {
					r.skip(c.label, err)
					continue
				}
			}

			id, err := r.authenticate(ctx, cfg)
			if err != nil {
				r.skip(c.label, err)
				continue
			}

			if prev, ok := covered[id]; ok {
				r.skipDuplicate(c.label, id, prev)
				continue
			}

			alias := c.profile
			if alias == "" {
				alias = id
			}
			s := Scope{Index: index, ID: id, Alias: alias, Source: c.source, Config: cfg}
			index++
			covered[id] = s.Label()

			log.Info().Str("scope", s.Label()).Str("source", string(s.Source)).Msg("Authenticated scope")
			if !yield(s) {
				return
			}
		}
	}
}

func candidatesFor(sel Selection, listProfiles func() ([]string, error)) ([]candidate, error) {
	switch {
	case sel.RoleMode():
		ids, err := sel.AccountIDs()
		if err != nil {
			return nil, err
		}
		out := make([]candidate, len(ids))
		for i, id := range ids {
			out[i] = candidate{label: id, source: SourceRole, account: id}
		}
		return out, nil

	case sel.AllProfiles:
		profiles, err := listProfiles()
		if err != nil {
			return nil, fmt.Errorf("%w: list profiles: %v", ErrInvalidSelection, err)
		}
		if len(profiles) == 0 {
			return nil, fmt.Errorf("%w: no profiles found in the shared config files", ErrInvalidSelection)
		}
		return profileCandidates(profiles), nil

	case len(sel.Profiles) > 0:
		return profileCandidates(sel.Profiles), nil

	default:
		return []candidate{{label: "default credentials", source: SourceDefault}}, nil
	}
}

func profileCandidates(profiles []string) []candidate {
	out := make([]candidate, 0, len(profiles))
	seen := make(map[string]bool)
	for _, p := range profiles {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, candidate{label: p, source: SourceProfile, profile: p})
	}
	return out
}

func (r *Resolver) roleConfig(base awssdk.Config, account string) awssdk.Config {
	cfg := base.Copy()
	roleARN := fmt.Sprintf("arn:aws:iam::%s:role/%s", account, r.sel.RoleName)
	cfg.Credentials = awssdk.NewCredentialsCache(r.assumeRole(base, roleARN, r.sel.ExternalID))
	return cfg
}

func (r *Resolver) authenticate(ctx context.Context, cfg awssdk.Config) (string, error) {
	out, err := r.newIdentity(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("get caller identity: %w", err)
	}
	id := awssdk.ToString(out.Account)
	if id == "" {
		return "", fmt.Errorf("get caller identity: empty account id")
	}
	return id, nil
}

func (r *Resolver) skip(label string, err error) {
	ev := log.Warn().Err(err).Str("scope", label)
	if hint := aws.Hint(err); hint != "" {
		ev = ev.Str("hint", hint)
	}
	ev.Msg("Skipping scope, authentication failed")

	r.mu.Lock()
	r.skipped = append(r.skipped, Skipped{Candidate: label, Err: err})
	r.mu.Unlock()
}

func (r *Resolver) skipDuplicate(label, account, coveredBy string) {
	log.Warn().
		Str("scope", label).
		Str("account", account).
		Str("covered_by", coveredBy).
		Msg("Skipping scope, account already covered by an earlier scope")

	r.mu.Lock()
	r.skipped = append(r.skipped, Skipped{
		Candidate: label,
		Err:       fmt.Errorf("%w: %s by %s", ErrDuplicateAccount, account, coveredBy),
	})
	r.mu.Unlock()
}

func assumeRoleProvider(base awssdk.Config, roleARN, externalID string) awssdk.CredentialsProvider {
	return stscreds.NewAssumeRoleProvider(sts.NewFromConfig(base), roleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = roleSessionName
		if externalID != "" {
			o.ExternalID = awssdk.String(externalID)
		}
	})
}
