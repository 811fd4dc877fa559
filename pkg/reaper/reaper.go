package reaper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/bwagner5/vpcreaper/pkg/catalog"
	"github.com/bwagner5/vpcreaper/pkg/plans"
	"github.com/bwagner5/vpcreaper/pkg/providers/enis"
	"github.com/bwagner5/vpcreaper/pkg/providers/igws"
	"github.com/bwagner5/vpcreaper/pkg/providers/instances"
	"github.com/bwagner5/vpcreaper/pkg/providers/loadbalancers"
	"github.com/bwagner5/vpcreaper/pkg/providers/nacls"
	"github.com/bwagner5/vpcreaper/pkg/providers/natgws"
	"github.com/bwagner5/vpcreaper/pkg/providers/peerings"
	"github.com/bwagner5/vpcreaper/pkg/providers/routetables"
	"github.com/bwagner5/vpcreaper/pkg/providers/securitygroups"
	"github.com/bwagner5/vpcreaper/pkg/providers/subnets"
	"github.com/bwagner5/vpcreaper/pkg/providers/vpcendpoints"
	"github.com/bwagner5/vpcreaper/pkg/providers/vpcs"
	"github.com/bwagner5/vpcreaper/pkg/selectors"
	"github.com/bwagner5/vpcreaper/pkg/utils/awserrors"
)

// ErrRootNotFound is returned when a root selector matches no VPC at all
var ErrRootNotFound = errors.New("no vpc matched the root selector")

// kindClient is the per-kind slice of the provider API that the executor
// drives: discovery and deletion. Detach and wait are optional capabilities
// gated by the catalog entry's flags.
type kindClient interface {
	List(ctx context.Context, vpcID string) ([]catalog.ResourceRef, error)
	Delete(ctx context.Context, ref catalog.ResourceRef) error
}

type detacher interface {
	Detach(ctx context.Context, ref catalog.ResourceRef, vpcID string) error
}

type deletionWaiter interface {
	WaitDeleted(ctx context.Context, ref catalog.ResourceRef, timeout time.Duration) error
}

// EC2API is an interface that combines the EC2 SDK client interfaces of every watcher
// AWS SDK for Go v2 does not provide a single interface that combines all the necessary methods
type EC2API interface {
	instances.SDKInstancesOps
	igws.SDKIGWOps
	natgws.SDKNATGWOps
	vpcendpoints.SDKVpcEndpointOps
	peerings.SDKPeeringOps
	enis.SDKENIOps
	routetables.SDKRouteTablesOps
	subnets.SDKSubnetsOps
	nacls.SDKNACLOps
	securitygroups.SDKSecurityGroupOps
	vpcs.SDKVPCsOps
}

// Reaper tears down a VPC and everything that transitively depends on it
type Reaper struct {
	region     string
	opts       Options
	vpcWatcher vpcs.Watcher
	sgWatcher  securitygroups.Watcher
	clients    map[catalog.ResourceKind]kindClient
}

// New creates a Reaper backed by real AWS clients
func New(awsCfg *aws.Config, opts Options) Reaper {
	return NewFromAPIs(ec2.NewFromConfig(*awsCfg), elbv2.NewFromConfig(*awsCfg), awsCfg.Region, opts)
}

// NewFromAPIs creates a Reaper from pre-built SDK clients
func NewFromAPIs(ec2API EC2API, elbAPI loadbalancers.SDKLoadBalancersOps, region string, opts Options) Reaper {
	vpcWatcher := vpcs.NewWatcher(ec2API)
	sgWatcher := securitygroups.NewWatcher(ec2API)
	return Reaper{
		region:     region,
		opts:       opts.withDefaults(),
		vpcWatcher: vpcWatcher,
		sgWatcher:  sgWatcher,
		clients: map[catalog.ResourceKind]kindClient{
			catalog.Instance:          instances.NewWatcher(ec2API),
			catalog.LoadBalancer:      loadbalancers.NewWatcher(elbAPI),
			catalog.InternetGateway:   igws.NewWatcher(ec2API),
			catalog.NatGateway:        natgws.NewWatcher(ec2API),
			catalog.VpcEndpoint:       vpcendpoints.NewWatcher(ec2API),
			catalog.PeeringConnection: peerings.NewWatcher(ec2API),
			catalog.NetworkInterface:  enis.NewWatcher(ec2API),
			catalog.RouteTable:        routetables.NewWatcher(ec2API),
			catalog.Subnet:            subnets.NewWatcher(ec2API),
			catalog.NetworkAcl:        nacls.NewWatcher(ec2API),
			catalog.SecurityGroup:     sgWatcher,
			catalog.Vpc:               vpcWatcher,
		},
	}
}

// ResolveRoot finds the root VPC from a selector string (tags or id).
// Returns ErrRootNotFound if nothing matches.
func (r Reaper) ResolveRoot(ctx context.Context, selectorStr string) (catalog.ResourceRef, error) {
	parsed, err := selectors.ParseSelectors(selectorStr)
	if err != nil {
		return catalog.ResourceRef{}, err
	}
	roots, err := r.vpcWatcher.Resolve(ctx, parsed)
	if err != nil && !awserrors.IsNotFound(err) {
		return catalog.ResourceRef{}, err
	}
	if len(roots) == 0 {
		return catalog.ResourceRef{}, fmt.Errorf("%w: %s", ErrRootNotFound, selectorStr)
	}
	if len(roots) > 1 {
		return catalog.ResourceRef{}, fmt.Errorf("selector %s matched %d vpcs, refusing to tear down more than one", selectorStr, len(roots))
	}
	return roots[0], nil
}

// Plan discovers every dependent of the root VPC and lays them out into
// deletion waves. A plan with an absent root means there is nothing to do,
// which keeps re-runs after a successful teardown idempotent.
func (r Reaper) Plan(ctx context.Context, vpcID string) (plans.TeardownPlan, error) {
	plan := plans.TeardownPlan{
		Metadata: plans.TeardownMetadata{
			Region: r.region,
			VpcID:  vpcID,
		},
	}
	roots, err := r.vpcWatcher.Resolve(ctx, []selectors.Selector{{ID: vpcID}})
	if err != nil {
		if awserrors.IsNotFound(err) {
			return plan, nil
		}
		return plan, fmt.Errorf("failed to check root vpc %s: %w", vpcID, err)
	}
	if len(roots) == 0 {
		return plan, nil
	}
	plan.Spec.Root = roots[0]

	waveNumber := 0
	for _, kinds := range catalog.Waves() {
		var refs []catalog.ResourceRef
		for _, kind := range kinds {
			listed, err := r.clients[kind].List(ctx, vpcID)
			if err != nil {
				return plan, fmt.Errorf("failed to list %s resources: %w", kind, err)
			}
			refs = append(refs, listed...)
		}
		// a wave with nothing discovered never blocks the plan
		if len(refs) == 0 {
			continue
		}
		waveNumber++
		plan.Spec.Waves = append(plan.Spec.Waves, plans.Wave{Number: waveNumber, Refs: refs})
	}
	return plan, nil
}
