package main

import (
	"context"
	"fmt"

	"github.com/kevin07696/mpesa-service/internal/adapters/ports"
	"github.com/kevin07696/mpesa-service/internal/adapters/secrets"
	"github.com/kevin07696/mpesa-service/internal/config"
	"go.uber.org/zap"
)

// initSecretManager builds the secret manager selected by SECRET_MANAGER.
// It returns nil for "env", where secrets are read straight from the environment.
func initSecretManager(ctx context.Context, cfg *config.SecretsConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	switch cfg.Manager {
	case "env":
		return nil, nil
	case "local":
		logger.Warn("Using local file secret manager - NOT for production use",
			zap.String("base_path", cfg.LocalBasePath))
		return secrets.NewLocalSecretManager(cfg.LocalBasePath, logger), nil
	case "aws":
		awsCfg := secrets.DefaultAWSSecretsManagerConfig(cfg.AWSRegion)
		awsCfg.Profile = cfg.AWSProfile
		awsCfg.Endpoint = cfg.AWSEndpoint
		awsCfg.CacheTTL = cfg.CacheTTL
		return secrets.NewAWSSecretsManagerAdapter(ctx, awsCfg, logger)
	case "vault":
		vaultCfg := secrets.DefaultVaultConfig(cfg.VaultAddress)
		vaultCfg.AuthMethod = cfg.VaultAuth
		vaultCfg.Token = cfg.VaultToken
		vaultCfg.RoleID = cfg.VaultRoleID
		vaultCfg.SecretID = cfg.VaultSecretID
		vaultCfg.MountPath = cfg.VaultMountPath
		vaultCfg.Namespace = cfg.VaultNamespace
		vaultCfg.CacheTTL = cfg.CacheTTL
		return secrets.NewVaultAdapter(ctx, vaultCfg, logger)
	default:
		return nil, fmt.Errorf("unsupported secret manager: %s", cfg.Manager)
	}
}

// resolveGatewaySecrets fills ConsumerSecret and PassKey from the secret manager
// when they were not given directly in the environment
func resolveGatewaySecrets(ctx context.Context, sm ports.SecretManagerAdapter, gw *config.GatewayConfig, logger *zap.Logger) error {
	targets := []struct {
		name  string
		path  string
		value *string
	}{
		{"consumer_secret", gw.ConsumerSecretPath, &gw.ConsumerSecret},
		{"stk_pass_key", gw.PassKeyPath, &gw.PassKey},
	}

	for _, t := range targets {
		if *t.value != "" {
			continue
		}
		if sm == nil {
			return fmt.Errorf("%s: no secret manager configured", t.name)
		}

		secret, err := sm.GetSecret(ctx, t.path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", t.name, err)
		}
		*t.value = secret.Value

		logger.Info("Resolved gateway secret",
			zap.String("secret", t.name),
			zap.String("path", t.path),
			zap.String("version", secret.Version))
	}
	return nil
}
