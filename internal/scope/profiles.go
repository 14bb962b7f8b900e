package scope

import (
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-ini/ini"
)

// ListProfiles returns every profile named in the shared config and
// credentials files, config file first, in file order, without duplicates.
func ListProfiles() ([]string, error) {
	configPath := os.Getenv("AWS_CONFIG_FILE")
	if configPath == "" {
		configPath = awsconfig.DefaultSharedConfigFilename()
	}
	credentialsPath := os.Getenv("AWS_SHARED_CREDENTIALS_FILE")
	if credentialsPath == "" {
		credentialsPath = awsconfig.DefaultSharedCredentialsFilename()
	}
	return profilesFromFiles(configPath, credentialsPath)
}

func profilesFromFiles(configPath, credentialsPath string) ([]string, error) {
	var profiles []string
	seen := make(map[string]bool)
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name != "" && !seen[name] {
			seen[name] = true
			profiles = append(profiles, name)
		}
	}

	// Loose skips files that do not exist.
	cfgFile, err := ini.LoadSources(ini.LoadOptions{Loose: true}, configPath)
	if err != nil {
		return nil, err
	}
	for _, section := range cfgFile.SectionStrings() {
		switch {
		case section == "default":
			add(section)
		case strings.HasPrefix(section, "profile "):
			add(strings.TrimPrefix(section, "profile "))
		}
	}

	credFile, err := ini.LoadSources(ini.LoadOptions{Loose: true}, credentialsPath)
	if err != nil {
		return nil, err
	}
	for _, section := range credFile.SectionStrings() {
		if section == ini.DefaultSection {
			continue
		}
		add(section)
	}

	return profiles, nil
}
