package model

// OwnerID is the stable identity of the user who submitted a marker. It is
// the partition key for per-user limits and name uniqueness.
type OwnerID string

// Owner pairs a stable identity with the display name known at event time.
type Owner struct {
	ID          OwnerID
	DisplayName string
}

// AnonymousName is substituted when a display name is unavailable.
const AnonymousName = "anonymous"

// OperationKind identifies one of the multi-turn flows.
type OperationKind string

const (
	OpAdd    OperationKind = "add"
	OpRename OperationKind = "rename"
	OpDelete OperationKind = "delete"
)

// DefaultNodeType is stamped on every new marker; users get no choice.
const DefaultNodeType = "MeshCore"

// Frequencies lists the accepted frequency tags, in presentation order.
var Frequencies = []string{"433 MHz", "868 MHz"}

// Input length limits, enforced before persistence.
const (
	MaxNameLength = 18
	MaxDescLength = 130
	MaxLinkLength = 70
)

// Per-owner marker ceilings. Admins are unlimited.
const (
	MaxMarkersPerUser     = 6
	MaxMarkersSpecialUser = 2 * MaxMarkersPerUser
)

// Marker is one persisted geotagged record.
type Marker struct {
	Lat       float64
	Lon       float64
	Name      string
	Desc      string
	NodeType  string
	Frequency string
	Link      string
	OwnerID   OwnerID
	Owner     string
	Timestamp int64
}

// Location is a structured coordinate payload, as delivered by the transport.
type Location struct {
	Lat float64
	Lon float64
}

// OwnerCount pairs an owner with how many markers they hold.
type OwnerCount struct {
	ID    OwnerID
	Name  string
	Count int
}

// Stats summarizes the dataset for the admin side-channel.
type Stats struct {
	Total         int
	UniqueOwners  int
	WithLink      int
	TopOwners     []OwnerCount
	SpecialOwners int
}

// ValidFrequency reports whether tag exactly matches one of the fixed set.
func ValidFrequency(tag string) bool {
	for _, f := range Frequencies {
		if tag == f {
			return true
		}
	}
	return false
}
