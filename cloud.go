package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/option"
)

const accessConfigName = "external-nat"
const accessConfigType = "ONE_TO_ONE_NAT"

// NodeTarget identifies the VM instance a CloudBinding operation addresses,
// plus the credentials scope (CloudSpec.Credentials, possibly empty) to use
// for that IPAllocation's project.
type NodeTarget struct {
	Project         string
	Zone            string
	Instance        string
	CredentialsPath string
}

// CloudBinding is component A. It exposes the four NIC access-config
// operations the reconcile engine drives; every method classifies its own
// failures rather than raising raw SDK errors to the caller, the way the
// teacher's aws.go wraps awserr.Error before returning it upward.
type CloudBinding interface {
	HasIP(ctx context.Context, target NodeTarget, ip string) bool
	HasAnyOf(ctx context.Context, target NodeTarget, ips []string) bool
	Attach(ctx context.Context, target NodeTarget, ip string) error
	Detach(ctx context.Context, target NodeTarget, ip string) error
}

type gcpCloudBinding struct {
	log     logr.Logger
	creds   *credentialCache
	errCtr  func(class ErrorClass)
}

func NewCloudBinding(log logr.Logger, errCtr func(class ErrorClass)) CloudBinding {
	return &gcpCloudBinding{
		log:    log.WithName("cloud"),
		creds:  newCredentialCache(),
		errCtr: errCtr,
	}
}

func (c *gcpCloudBinding) service(ctx context.Context, credentialsPath string) (*compute.Service, error) {
	ts, err := c.creds.tokenSource(ctx, credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("acquiring compute credentials: %w", err)
	}
	return compute.NewService(ctx, option.WithTokenSource(ts))
}

func (c *gcpCloudBinding) count(err error) {
	if c.errCtr != nil {
		c.errCtr(Classify(err))
	}
}

// HasIP implements spec §4.A.1: never raises to the caller, returns false
// and increments an error counter on any provider failure.
func (c *gcpCloudBinding) HasIP(ctx context.Context, target NodeTarget, ip string) bool {
	return c.HasAnyOf(ctx, target, []string{ip})
}

// HasAnyOf implements §4.A.2: a single instance fetch checked against every
// candidate IP.
func (c *gcpCloudBinding) HasAnyOf(ctx context.Context, target NodeTarget, ips []string) bool {
	project, zone, instance := target.Project, target.Zone, target.Instance

	svc, err := c.service(ctx, target.CredentialsPath)
	if err != nil {
		c.log.Error(err, "building compute service", "instance", instance)
		c.count(err)
		return false
	}

	inst, err := svc.Instances.Get(project, zone, instance).Context(ctx).Do()
	if err != nil {
		c.log.Error(err, "fetching instance", "instance", instance, "zone", zone)
		c.count(err)
		return false
	}

	want := make(map[string]bool, len(ips))
	for _, ip := range ips {
		want[ip] = true
	}

	for _, nic := range inst.NetworkInterfaces {
		for _, ac := range nic.AccessConfigs {
			if want[ac.NatIP] {
				return true
			}
		}
	}
	return false
}

// Attach implements §4.A.3: the natIP field is immutable on the provider
// side, so an existing ONE_TO_ONE_NAT access config must be deleted before
// the replacement is added. Attach is a no-op when the IP is already
// present (SPEC_FULL.md Open Question resolution).
func (c *gcpCloudBinding) Attach(ctx context.Context, target NodeTarget, ip string) error {
	project, zone, instance := target.Project, target.Zone, target.Instance

	svc, err := c.service(ctx, target.CredentialsPath)
	if err != nil {
		c.count(err)
		return fmt.Errorf("attach %s to %s: %w", ip, instance, err)
	}

	inst, err := svc.Instances.Get(project, zone, instance).Context(ctx).Do()
	if err != nil {
		c.count(err)
		return fmt.Errorf("attach %s to %s: fetching instance: %w", ip, instance, err)
	}

	if len(inst.NetworkInterfaces) == 0 {
		err := fmt.Errorf("instance %s has no network interfaces", instance)
		c.count(err)
		return err
	}

	primary := inst.NetworkInterfaces[0]

	for _, ac := range primary.AccessConfigs {
		if ac.NatIP == ip {
			return nil
		}
		if ac.Type == accessConfigType {
			op, err := svc.Instances.DeleteAccessConfig(project, zone, instance, ac.Name, primary.Name).Context(ctx).Do()
			if err != nil {
				c.count(err)
				return fmt.Errorf("attach %s to %s: deleting existing access config %s: %w", ip, instance, ac.Name, err)
			}
			c.log.V(1).Info("deleted existing access config", "instance", instance, "op", opName(op))
		}
	}

	op, err := svc.Instances.AddAccessConfig(project, zone, instance, primary.Name, &compute.AccessConfig{
		Name:   accessConfigName,
		Type:   accessConfigType,
		NatIP:  ip,
	}).Context(ctx).Do()
	if err != nil {
		c.count(err)
		return fmt.Errorf("attach %s to %s: adding access config: %w", ip, instance, err)
	}

	c.log.Info("attached IP", "instance", instance, "ip", ip, "op", opName(op))
	return nil
}

// Detach implements §4.A.4: not-found is success.
func (c *gcpCloudBinding) Detach(ctx context.Context, target NodeTarget, ip string) error {
	project, zone, instance := target.Project, target.Zone, target.Instance

	svc, err := c.service(ctx, target.CredentialsPath)
	if err != nil {
		c.count(err)
		return fmt.Errorf("detach %s from %s: %w", ip, instance, err)
	}

	inst, err := svc.Instances.Get(project, zone, instance).Context(ctx).Do()
	if err != nil {
		if Classify(err) == ClassNotFound {
			return nil
		}
		c.count(err)
		return fmt.Errorf("detach %s from %s: fetching instance: %w", ip, instance, err)
	}

	for _, nic := range inst.NetworkInterfaces {
		for _, ac := range nic.AccessConfigs {
			if ac.NatIP != ip {
				continue
			}
			_, err := svc.Instances.DeleteAccessConfig(project, zone, instance, ac.Name, nic.Name).Context(ctx).Do()
			if err != nil {
				if Classify(err) == ClassNotFound {
					return nil
				}
				c.count(err)
				return fmt.Errorf("detach %s from %s: %w", ip, instance, err)
			}
			return nil
		}
	}

	c.log.Info("detach: access config not found, treating as success", "instance", instance, "ip", ip)
	return nil
}

func opName(op *compute.Operation) string {
	if op == nil {
		return ""
	}
	return op.Name
}

// credentialCache is the "memoised process-wide, fetch-once" credential
// store spec.md §9 calls for: a lazily initialised value protected by a
// single mutex, refreshed only when the underlying token reports expiry.
// Grounded on gcp.py's get_gcp_credentials(), which memoizes via a function
// attribute and calls creds.refresh() when creds.expired holds.
type credentialCache struct {
	mu    sync.Mutex
	creds *google.Credentials
	key   string
}

func newCredentialCache() *credentialCache {
	return &credentialCache{}
}

// tokenSource returns an oauth2.TokenSource for use with
// option.WithTokenSource. credentialsPath, when non-empty, selects a
// service-account JSON key file (CloudSpec.Credentials); otherwise ambient
// workload-identity credentials are discovered via
// google.FindDefaultCredentials, exactly as gcp.py falls back to
// google.auth.default() in the absence of GOOGLE_APPLICATION_CREDENTIALS.
// google.Credentials.TokenSource already refreshes its token on expiry, so
// this only needs to re-acquire the underlying *google.Credentials once,
// not on every call.
func (c *credentialCache) tokenSource(ctx context.Context, credentialsPath string) (oauth2.TokenSource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if credentialsPath == "" {
		credentialsPath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}

	if c.creds != nil && c.key == credentialsPath {
		return c.creds.TokenSource, nil
	}

	var creds *google.Credentials
	var err error
	if credentialsPath != "" {
		b, readErr := os.ReadFile(credentialsPath)
		if readErr != nil {
			return nil, fmt.Errorf("reading credentials file %s: %w", credentialsPath, readErr)
		}
		creds, err = google.CredentialsFromJSON(ctx, b, compute.ComputeScope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, compute.ComputeScope)
	}
	if err != nil {
		return nil, fmt.Errorf("acquiring gcp credentials: %w", err)
	}

	c.creds = creds
	c.key = credentialsPath
	return c.creds.TokenSource, nil
}
