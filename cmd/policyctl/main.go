// policyctl 在 YAML 文件和数据库之间导入导出商户积分策略。
//
//	policyctl export -admin <id> [-out policy.yaml]
//	policyctl import -admin <id> -file policy.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gopkg.in/yaml.v3"

	"rewardledger/internal/pkg/config"
	"rewardledger/internal/pkg/logger"
	"rewardledger/internal/service/loyalty/application"
	"rewardledger/internal/service/loyalty/domain"
	"rewardledger/internal/service/loyalty/infrastructure"
	"rewardledger/internal/service/loyalty/infrastructure/rule"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("LOYALTY_CONFIG"), "path to config.yaml")
	adminID := fs.String("admin", "", "admin id that owns the policy")
	file := fs.String("file", "", "policy YAML file to import")
	out := fs.String("out", "", "write exported policy to this file instead of stdout")
	_ = fs.Parse(os.Args[2:])

	if *adminID == "" {
		usage()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init("policyctl", os.Stderr)

	svc, err := newPolicyService(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init policy service")
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "export":
		w := io.Writer(os.Stdout)
		if *out != "" {
			f, err := os.Create(*out)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to create output file")
			}
			defer f.Close()
			w = f
		}
		if err := exportPolicy(ctx, svc, *adminID, w); err != nil {
			log.Fatal().Err(err).Msg("export failed")
		}
	case "import":
		if *file == "" {
			usage()
		}
		f, err := os.Open(*file)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open policy file")
		}
		defer f.Close()
		p, err := importPolicy(ctx, svc, *adminID, f)
		if err != nil {
			log.Fatal().Err(err).Msg("import failed")
		}
		log.Info().Str("admin_id", p.AdminID).Str("policy", p.Name).Msg("✅ policy imported")
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: policyctl export|import -admin <id> [-file policy.yaml] [-out policy.yaml] [-config config.yaml]")
	os.Exit(2)
}

func newPolicyService(cfg *config.Config) (*application.PolicyService, error) {
	db, err := infrastructure.OpenDatabase(cfg.Infra.Database)
	if err != nil {
		return nil, err
	}
	rules, err := rule.NewCELRuleEngine()
	if err != nil {
		return nil, err
	}
	return application.NewPolicyService(
		infrastructure.NewGormPolicyRepository(db),
		infrastructure.NewGormAccountRepository(db),
		infrastructure.NewGormTransactionRepository(db),
		rules,
		otel.Tracer("policyctl"),
	), nil
}

func exportPolicy(ctx context.Context, svc *application.PolicyService, adminID string, w io.Writer) error {
	p, err := svc.GetPolicy(ctx, adminID)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}

func importPolicy(ctx context.Context, svc *application.PolicyService, adminID string, r io.Reader) (*domain.PolicySnapshot, error) {
	var p domain.PolicySnapshot
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, domain.Validationf("parse policy yaml: %v", err)
	}
	return svc.UpsertPolicy(ctx, adminID, p)
}
