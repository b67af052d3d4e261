package revoke

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"vigil/pkg/platform/sentinel"
)

var (
	credentialsRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_credentials_revoked_total",
		Help: "Credentials successfully detached and deactivated",
	})
	revocationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_revocation_failures_total",
		Help: "Per-credential revocation attempts that failed",
	})
)

// CredentialRegistry is the external registry owning device identities and
// their attached credentials. ListPrincipals returns
// sentinel.ErrUnknownIdentity when the device identity does not exist.
type CredentialRegistry interface {
	ListPrincipals(ctx context.Context, deviceID string) ([]string, error)
	Detach(ctx context.Context, deviceID, principal string) error
	Deactivate(ctx context.Context, certificateID string) error
}

// Result records the revocation attempt for one credential.
type Result struct {
	Principal   string
	Detached    bool
	Deactivated bool
	Err         error
}

// Report aggregates the fan-out so partial failure is observable rather
// than a sequence of uncoordinated log lines.
type Report struct {
	DeviceID string
	Results  []Result
}

// Failed counts credentials left in an incomplete revocation state.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Revoked counts credentials fully detached and deactivated.
func (r Report) Revoked() int {
	n := 0
	for _, res := range r.Results {
		if res.Detached && res.Deactivated {
			n++
		}
	}
	return n
}

// Service revokes every credential attached to a device identity so the
// device can no longer connect. Revocation is terminal within this core.
type Service struct {
	registry    CredentialRegistry
	logger      *slog.Logger
	parallelism int
}

func New(registry CredentialRegistry, logger *slog.Logger, parallelism int) *Service {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Service{registry: registry, logger: logger, parallelism: parallelism}
}

// Revoke enumerates and revokes all credentials attached to deviceID.
// Unknown identity is a logged no-op, not an error. Each credential is
// detached then deactivated; the split ordering means a partial failure
// leaves at most one credential half-revoked instead of all attached.
// One failure never aborts the remaining credentials, and there is no
// rollback: partial revocation is an accepted, logged outcome.
func (s *Service) Revoke(ctx context.Context, deviceID string) (Report, error) {
	report := Report{DeviceID: deviceID}

	principals, err := s.registry.ListPrincipals(ctx, deviceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrUnknownIdentity) {
			s.logger.Error("device identity unknown to registry, nothing to revoke",
				"device_id", deviceID)
			return report, nil
		}
		return report, err
	}
	if len(principals) == 0 {
		s.logger.Warn("no credentials attached", "device_id", deviceID)
		return report, nil
	}

	report.Results = make([]Result, len(principals))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, principal := range principals {
		g.Go(func() error {
			report.Results[i] = s.revokeOne(ctx, deviceID, principal)
			return nil
		})
	}
	_ = g.Wait() // revokeOne never returns an error through the group

	for _, res := range report.Results {
		if res.Err != nil {
			revocationFailures.Inc()
			s.logger.Error("credential revocation incomplete",
				"device_id", deviceID,
				"principal", res.Principal,
				"detached", res.Detached,
				"deactivated", res.Deactivated,
				"error", res.Err)
			continue
		}
		credentialsRevoked.Inc()
		s.logger.Info("credential revoked",
			"device_id", deviceID, "principal", res.Principal)
	}
	return report, nil
}

func (s *Service) revokeOne(ctx context.Context, deviceID, principal string) Result {
	res := Result{Principal: principal}
	if err := s.registry.Detach(ctx, deviceID, principal); err != nil {
		res.Err = err
		return res
	}
	res.Detached = true
	if err := s.registry.Deactivate(ctx, CertificateID(principal)); err != nil {
		res.Err = err
		return res
	}
	res.Deactivated = true
	return res
}

// CertificateID extracts the certificate identifier from a principal
// reference, which names the certificate after its final path segment.
func CertificateID(principal string) string {
	if i := strings.LastIndex(principal, "/"); i >= 0 {
		return principal[i+1:]
	}
	return principal
}
