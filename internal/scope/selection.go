package scope

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrInvalidSelection reports a scope selection that cannot be resolved.
var ErrInvalidSelection = errors.New("invalid scope selection")

// ErrDuplicateAccount marks a candidate whose account an earlier scope
// already covers.
var ErrDuplicateAccount = errors.New("account already covered")

// Selection describes which accounts to inventory. At most one mode may be
// used: explicit profiles, every local profile, or AssumeRole into a list
// of accounts. No mode means the default credential chain.
type Selection struct {
	Profiles     []string
	AllProfiles  bool
	Accounts     []string
	AccountsFile string
	RoleName     string
	ExternalID   string
	BaseProfile  string
}

// RoleMode reports whether scopes are reached through AssumeRole.
func (s Selection) RoleMode() bool {
	return len(s.Accounts) > 0 || s.AccountsFile != "" || s.RoleName != ""
}

// Validate checks the selection before any credentials are touched.
func (s Selection) Validate() error {
	modes := 0
	if len(s.Profiles) > 0 {
		modes++
	}
	if s.AllProfiles {
		modes++
	}
	if s.RoleMode() {
		modes++
	}
	if modes > 1 {
		return fmt.Errorf("%w: --profiles, --all-profiles and --accounts are mutually exclusive", ErrInvalidSelection)
	}

	if !s.RoleMode() {
		if s.ExternalID != "" {
			return fmt.Errorf("%w: --external-id requires --role-name", ErrInvalidSelection)
		}
		if s.BaseProfile != "" {
			return fmt.Errorf("%w: --base-profile requires --role-name", ErrInvalidSelection)
		}
		return nil
	}

	if s.RoleName == "" {
		return fmt.Errorf("%w: --role-name is required with --accounts", ErrInvalidSelection)
	}
	if len(s.Accounts) == 0 && s.AccountsFile == "" {
		return fmt.Errorf("%w: --role-name requires --accounts or --accounts-file", ErrInvalidSelection)
	}
	for _, id := range s.Accounts {
		if !validAccountID(id) {
			return fmt.Errorf("%w: account id %q must be 12 digits", ErrInvalidSelection, id)
		}
	}
	return nil
}

// AccountIDs returns the explicit accounts followed by the ones read from
// AccountsFile, without duplicates.
func (s Selection) AccountIDs() ([]string, error) {
	ids := make([]string, 0, len(s.Accounts))
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, id := range s.Accounts {
		add(strings.TrimSpace(id))
	}

	if s.AccountsFile != "" {
		fromFile, err := readAccountsFile(s.AccountsFile)
		if err != nil {
			return nil, err
		}
		for _, id := range fromFile {
			add(id)
		}
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no accounts to assume %s into", ErrInvalidSelection, s.RoleName)
	}
	return ids, nil
}

// readAccountsFile reads one account id per line; blank lines and lines
// starting with # are ignored.
func readAccountsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open accounts file: %v", ErrInvalidSelection, err)
	}
	defer func() { _ = f.Close() }()

	var ids []string
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if !validAccountID(text) {
			return nil, fmt.Errorf("%w: %s:%d: account id %q must be 12 digits", ErrInvalidSelection, path, line, text)
		}
		ids = append(ids, text)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	return ids, nil
}

func validAccountID(id string) bool {
	if len(id) != 12 {
		return false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
