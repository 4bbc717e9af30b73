package aws

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/fennec-cloud/tally/internal/engine"
	"github.com/fennec-cloud/tally/internal/pagewalk"
)

// Source yields the accounts a run will inventory. Per-account
// resolution failures go to the error sink; the source keeps going.
type Source interface {
	Accounts(ctx context.Context) ([]engine.Account, error)
}

// OrgSource discovers active member accounts through Organizations.
// Accounts parented by an excluded OU are skipped.
type OrgSource struct {
	api         func(ctx context.Context) (OrganizationsAPI, error)
	excludedOUs []string
}

func NewOrgSource(cfgs ConfigSource, excludedOUs []string) *OrgSource {
	return &OrgSource{
		api: func(ctx context.Context) (OrganizationsAPI, error) {
			cfg, err := cfgs.Config(ctx, engine.Account{}, HomeRegion)
			if err != nil {
				return nil, err
			}
			return organizations.NewFromConfig(cfg), nil
		},
		excludedOUs: excludedOUs,
	}
}

func (s *OrgSource) Accounts(ctx context.Context) ([]engine.Account, error) {
	api, err := s.api(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := pagewalk.New(func(ctx context.Context, token string) ([]orgtypes.Account, string, error) {
		out, err := api.ListAccounts(ctx, &organizations.ListAccountsInput{NextToken: optToken(token)})
		if err != nil {
			return nil, "", err
		}
		return out.Accounts, aws.ToString(out.NextToken), nil
	}).Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing organization accounts: %w", err)
	}

	var accounts []engine.Account
	for _, a := range raw {
		if a.Status != orgtypes.AccountStatusActive {
			continue
		}
		id := aws.ToString(a.Id)
		excluded, err := s.isExcluded(ctx, api, id)
		if err != nil {
			return nil, err
		}
		if excluded {
			continue
		}
		accounts = append(accounts, engine.Account{
			ID:       id,
			Name:     aws.ToString(a.Name),
			Services: AllServices(),
		})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (s *OrgSource) isExcluded(ctx context.Context, api OrganizationsAPI, accountID string) (bool, error) {
	if len(s.excludedOUs) == 0 {
		return false, nil
	}
	out, err := api.ListParents(ctx, &organizations.ListParentsInput{ChildId: aws.String(accountID)})
	if err != nil {
		return false, fmt.Errorf("listing parents of %s: %w", accountID, err)
	}
	for _, parent := range out.Parents {
		for _, ou := range s.excludedOUs {
			if aws.ToString(parent.Id) == ou {
				return true, nil
			}
		}
	}
	return false, nil
}

// FileSource reads profiles from an accounts file, one per line, with
// an optional services restriction:
//
//	prod-account
//	staging services=ec2,s3,lambda
//
// Profiles that fail to resolve are recorded and skipped so one bad
// credential never sinks the run.
type FileSource struct {
	path     string
	identity identityFactory
	errs     *engine.ErrorSink
}

type identityFactory func(ctx context.Context, profile string) (STSAPI, IAMAPI, error)

func NewFileSource(path string, cfgs ConfigSource, errs *engine.ErrorSink) *FileSource {
	return &FileSource{path: path, identity: identityClients(cfgs), errs: errs}
}

func (s *FileSource) Accounts(ctx context.Context) ([]engine.Account, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading accounts file: %w", err)
	}
	entries, err := ParseAccountsFile(string(data))
	if err != nil {
		return nil, err
	}

	var accounts []engine.Account
	for _, e := range entries {
		acct, err := resolveProfile(ctx, s.identity, e.Profile)
		if err != nil {
			s.errs.Record(engine.ErrorRecord{
				AccountID: e.Profile,
				Origin:    "accounts",
				Message:   err.Error(),
			})
			continue
		}
		acct.Services = e.Services
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// AccountEntry is one parsed line of an accounts file.
type AccountEntry struct {
	Profile  string
	Services []string
}

// ParseAccountsFile parses accounts-file content. Blank lines and
// lines starting with # are skipped. Without a services suffix an
// entry gets every known service.
func ParseAccountsFile(content string) ([]AccountEntry, error) {
	var entries []AccountEntry
	scanner := bufio.NewScanner(strings.NewReader(content))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		entry := AccountEntry{Profile: fields[0], Services: AllServices()}
		for _, f := range fields[1:] {
			value, ok := strings.CutPrefix(f, "services=")
			if !ok {
				return nil, fmt.Errorf("accounts file line %d: unexpected field %q", lineNo, f)
			}
			entry.Services = nil
			for _, svc := range strings.Split(value, ",") {
				svc = strings.ToLower(strings.TrimSpace(svc))
				if svc != "" {
					entry.Services = append(entry.Services, svc)
				}
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ProfileSource inventories the single account behind one profile.
type ProfileSource struct {
	profile  string
	identity identityFactory
}

func NewProfileSource(profile string, cfgs ConfigSource) *ProfileSource {
	return &ProfileSource{profile: profile, identity: identityClients(cfgs)}
}

func (s *ProfileSource) Accounts(ctx context.Context) ([]engine.Account, error) {
	acct, err := resolveProfile(ctx, s.identity, s.profile)
	if err != nil {
		return nil, err
	}
	acct.Services = AllServices()
	return []engine.Account{acct}, nil
}

func identityClients(cfgs ConfigSource) identityFactory {
	return func(ctx context.Context, profile string) (STSAPI, IAMAPI, error) {
		cfg, err := cfgs.Config(ctx, engine.Account{ID: profile}, HomeRegion)
		if err != nil {
			return nil, nil, err
		}
		return sts.NewFromConfig(cfg), iam.NewFromConfig(cfg), nil
	}
}

// resolveProfile turns a profile name into an account identity. The
// profile name stays in Account.ID so later config loads reuse it;
// the display name prefers the account alias.
func resolveProfile(ctx context.Context, identity identityFactory, profile string) (engine.Account, error) {
	stsAPI, iamAPI, err := identity(ctx, profile)
	if err != nil {
		return engine.Account{}, fmt.Errorf("profile %s: %w", profile, err)
	}
	ident, err := stsAPI.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return engine.Account{}, fmt.Errorf("profile %s: resolving identity: %w", profile, err)
	}
	name := aws.ToString(ident.Account)
	if aliases, err := iamAPI.ListAccountAliases(ctx, &iam.ListAccountAliasesInput{}); err == nil && len(aliases.AccountAliases) > 0 {
		name = aliases.AccountAliases[0]
	}
	return engine.Account{ID: profile, Name: name}, nil
}

// ReadExcludedOUs loads OU identifiers from a file, one per line.
// Blank lines and # comments are skipped.
func ReadExcludedOUs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading excluded OUs: %w", err)
	}
	var ous []string
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ous = append(ous, line)
	}
	return ous, nil
}
