package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

// Dial connects to the configured frontend, registering the namespace first when
// AutoRegisterNamespace is set. It returns nil, nil when Temporal is not configured.
func Dial(ctx context.Context, log *logger.Logger, cfg Config) (client.Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	if !cfg.Enabled() {
		log.Warn("TEMPORAL_ADDRESS not set; pending syncs are retried in process")
		return nil, nil
	}
	if cfg.AutoRegisterNamespace {
		if err := EnsureNamespace(ctx, log, cfg); err != nil {
			return nil, err
		}
	}
	opts, err := cfg.clientOptions(log, true)
	if err != nil {
		return nil, err
	}

	var c client.Client
	err = Retry(ctx, cfg, cfg.DialMaxWait, func(attempt int) (bool, error) {
		dctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		var dialErr error
		c, dialErr = client.DialContext(dctx, opts)
		if dialErr != nil {
			log.Warn("temporal dial failed", "address", cfg.Address, "attempt", attempt, "error", dialErr)
			return true, dialErr
		}
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal %s/%s: %w", cfg.Address, cfg.Namespace, err)
	}
	log.Info("temporal connected", "address", cfg.Address, "namespace", cfg.Namespace)
	return c, nil
}

// EnsureNamespace creates cfg.Namespace on a self-hosted cluster when it is missing.
func EnsureNamespace(ctx context.Context, log *logger.Logger, cfg Config) error {
	if !cfg.Enabled() || cfg.Namespace == "" {
		return nil
	}
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// namespace-less options: the namespace client must work before the namespace exists
	opts, err := cfg.clientOptions(log, false)
	if err != nil {
		return err
	}
	ns, err := client.NewNamespaceClient(opts)
	if err != nil {
		return fmt.Errorf("temporal namespace client: %w", err)
	}
	defer ns.Close()

	return Retry(ctx, cfg, 10*time.Second, func(attempt int) (bool, error) {
		_, err := ns.Describe(ctx, cfg.Namespace)
		var missing *serviceerror.NamespaceNotFound
		switch {
		case err == nil:
			return false, nil
		case !errors.As(err, &missing):
			return Transient(err), fmt.Errorf("describe namespace %s: %w", cfg.Namespace, err)
		}
		err = ns.Register(ctx, &workflowservice.RegisterNamespaceRequest{
			Namespace:                        cfg.Namespace,
			Description:                      "coursetrack pending sync retries",
			WorkflowExecutionRetentionPeriod: durationpb.New(cfg.NamespaceRetention),
		})
		var exists *serviceerror.NamespaceAlreadyExists
		if err == nil || errors.As(err, &exists) {
			log.Info("temporal namespace ready", "namespace", cfg.Namespace, "attempt", attempt)
			return false, nil
		}
		return Transient(err), fmt.Errorf("register namespace %s: %w", cfg.Namespace, err)
	})
}

func (c Config) clientOptions(log *logger.Logger, withNamespace bool) (client.Options, error) {
	opts := client.Options{HostPort: c.Address, Logger: log}
	if withNamespace {
		opts.Namespace = c.Namespace
	}
	if !c.mTLS() {
		return opts, nil
	}
	tlsCfg, err := c.tlsConfig()
	if err != nil {
		return client.Options{}, err
	}
	opts.ConnectionOptions.TLS = tlsCfg
	return opts, nil
}

func (c Config) tlsConfig() (*tls.Config, error) {
	if c.ClientCertPath == "" || c.ClientKeyPath == "" {
		return nil, errors.New("temporal mTLS needs TEMPORAL_CLIENT_CERT_PATH and TEMPORAL_CLIENT_KEY_PATH")
	}
	pair, err := tls.LoadX509KeyPair(c.ClientCertPath, c.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal mTLS key pair: %w", err)
	}
	out := &tls.Config{Certificates: []tls.Certificate{pair}, MinVersion: tls.VersionTLS12}
	if c.ClientCAPath == "" {
		return out, nil
	}
	caPEM, err := os.ReadFile(c.ClientCAPath)
	if err != nil {
		return nil, fmt.Errorf("temporal mTLS CA: %w", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("temporal mTLS CA %s: no certificates", c.ClientCAPath)
	}
	out.RootCAs = roots
	return out, nil
}
