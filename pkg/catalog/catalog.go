package catalog

// ResourceKind is a kind of VPC-scoped resource that vpcreaper knows how to tear down.
type ResourceKind string

const (
	Instance          ResourceKind = "instance"
	LoadBalancer      ResourceKind = "load-balancer"
	InternetGateway   ResourceKind = "internet-gateway"
	NatGateway        ResourceKind = "nat-gateway"
	VpcEndpoint       ResourceKind = "vpc-endpoint"
	PeeringConnection ResourceKind = "peering-connection"
	NetworkInterface  ResourceKind = "network-interface"
	RouteTable        ResourceKind = "route-table"
	Subnet            ResourceKind = "subnet"
	NetworkAcl        ResourceKind = "network-acl"
	SecurityGroup     ResourceKind = "security-group"
	Vpc               ResourceKind = "vpc"
)

// ResourceRef identifies one live cloud resource discovered by a list call.
type ResourceRef struct {
	Kind ResourceKind
	ID   string
	Tags map[string]string
}

// Entry is the static deletion contract for a single resource kind.
// DependsOn lists the kinds this kind depends on, meaning this kind must be
// deleted before any of the kinds it depends on.
type Entry struct {
	Kind ResourceKind
	// DependsOn kinds must outlive this kind during teardown
	DependsOn []ResourceKind
	// RequiresDetach kinds need a detach/disassociate call before deletion
	RequiresDetach bool
	// RequiresWait kinds delete asynchronously and must be polled to a terminal
	// state before dependent kinds can be removed
	RequiresWait bool
	// RequiresScrub kinds permit same-kind cross references that must be
	// revoked before the kind's own deletion wave
	RequiresScrub bool
}

// entries is declared in tie-break order: when two kinds land in the same
// wave, they are processed in the order they appear here.
var entries = []Entry{
	{Kind: Instance, DependsOn: []ResourceKind{Subnet, SecurityGroup}, RequiresWait: true},
	{Kind: LoadBalancer, DependsOn: []ResourceKind{NetworkInterface, Subnet, SecurityGroup}, RequiresWait: true},
	{Kind: InternetGateway, DependsOn: []ResourceKind{Vpc}, RequiresDetach: true},
	{Kind: NatGateway, DependsOn: []ResourceKind{NetworkInterface, Subnet}, RequiresWait: true},
	{Kind: VpcEndpoint, DependsOn: []ResourceKind{NetworkInterface, RouteTable, SecurityGroup}},
	{Kind: PeeringConnection, DependsOn: []ResourceKind{Vpc}},
	{Kind: NetworkInterface, DependsOn: []ResourceKind{Subnet, SecurityGroup}, RequiresDetach: true},
	{Kind: RouteTable, DependsOn: []ResourceKind{Vpc}, RequiresDetach: true},
	{Kind: Subnet, DependsOn: []ResourceKind{NetworkAcl, SecurityGroup, Vpc}},
	{Kind: NetworkAcl, DependsOn: []ResourceKind{Vpc}},
	{Kind: SecurityGroup, DependsOn: []ResourceKind{Vpc}, RequiresScrub: true},
	{Kind: Vpc},
}

// Entries returns the catalog in declaration order.
func Entries() []Entry {
	return entries
}

// Get returns the catalog entry for the given kind.
// Asking for an unknown kind is a programming error.
func Get(kind ResourceKind) Entry {
	for _, entry := range entries {
		if entry.Kind == kind {
			return entry
		}
	}
	panic("unknown resource kind: " + string(kind))
}

// DependenciesOf returns the kinds that must outlive the given kind.
func DependenciesOf(kind ResourceKind) []ResourceKind {
	return Get(kind).DependsOn
}
