// Command seed registers tracked projects from a YAML manifest. Projects
// whose component key already exists are skipped, so reruns are safe.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sonartrack/api/internal/config"
	"github.com/sonartrack/api/internal/infra/postgres"
	"github.com/sonartrack/api/pkg/crypto"
	"github.com/sonartrack/api/pkg/domain/project"
	"github.com/sonartrack/api/pkg/domain/shared"
)

type manifest struct {
	Projects []seedProject `yaml:"projects"`
}

type seedProject struct {
	Name         string `yaml:"name"`
	BaseURL      string `yaml:"base_url"`
	ComponentKey string `yaml:"component_key"`
	Branch       string `yaml:"branch"`
	Token        string `yaml:"token"`
	Login        string `yaml:"login"`
	Password     string `yaml:"password"`
	SyncEnabled  *bool  `yaml:"sync_enabled"`
	SyncSchedule string `yaml:"sync_schedule"`

	Options *struct {
		QualityGate   *bool `yaml:"quality_gate"`
		Coverage      *bool `yaml:"coverage"`
		NewCodePeriod *bool `yaml:"new_code_period"`
		Hotspots      *bool `yaml:"hotspots"`
	} `yaml:"options"`
}

func main() {
	file := flag.String("file", "seed/projects.yaml", "Path to the project manifest")
	flag.Parse()

	if err := run(*file); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Projects) == 0 {
		return fmt.Errorf("manifest %s contains no projects", file)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	encryptor, err := crypto.FromKey(cfg.Encryption.Key)
	if err != nil {
		return fmt.Errorf("initialize credential encryption: %w", err)
	}
	repo := postgres.NewProjectRepository(db, encryptor)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, skipped := 0, 0
	for _, sp := range m.Projects {
		if _, err := repo.GetByComponentKey(ctx, sp.ComponentKey); err == nil {
			fmt.Printf("skip %s (already registered)\n", sp.ComponentKey)
			skipped++
			continue
		} else if !shared.IsNotFound(err) {
			return fmt.Errorf("lookup %s: %w", sp.ComponentKey, err)
		}

		p, err := buildProject(sp)
		if err != nil {
			return fmt.Errorf("project %s: %w", sp.ComponentKey, err)
		}
		if err := repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create %s: %w", sp.ComponentKey, err)
		}
		fmt.Printf("created %s (id: %s)\n", sp.ComponentKey, p.ID)
		created++
	}

	fmt.Printf("\nSeed finished: %d created, %d skipped\n", created, skipped)
	return nil
}

func buildProject(sp seedProject) (*project.Project, error) {
	p, err := project.New(sp.Name, sp.BaseURL, sp.ComponentKey)
	if err != nil {
		return nil, err
	}
	p.Branch = sp.Branch
	p.SetCredentials(project.Credentials{
		Token:    sp.Token,
		Login:    sp.Login,
		Password: sp.Password,
	})
	if sp.SyncEnabled != nil {
		p.SyncEnabled = *sp.SyncEnabled
	}
	if sp.SyncSchedule != "" {
		if err := p.SetSchedule(sp.SyncSchedule); err != nil {
			return nil, err
		}
	}
	if sp.Options != nil {
		if sp.Options.QualityGate != nil {
			p.Options.QualityGate = *sp.Options.QualityGate
		}
		if sp.Options.Coverage != nil {
			p.Options.Coverage = *sp.Options.Coverage
		}
		if sp.Options.NewCodePeriod != nil {
			p.Options.NewCodePeriod = *sp.Options.NewCodePeriod
		}
		if sp.Options.Hotspots != nil {
			p.Options.Hotspots = *sp.Options.Hotspots
		}
	}
	return p, nil
}
