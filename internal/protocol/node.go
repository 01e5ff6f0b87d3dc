package protocol

// OpenThread node REST API types. These endpoints answer with bare JSON or
// plain text instead of an Envelope.

// Device roles reported by GET /node/state.
const (
	StateDisabled = "disabled"
	StateDetached = "detached"
	StateChild    = "child"
	StateRouter   = "router"
	StateLeader   = "leader"
)

// Commands accepted by PUT /node/state.
const (
	StateEnable  = "enable"
	StateDisable = "disable"
)

// Dataset kinds served under /node/dataset/.
const (
	DatasetActive  = "active"
	DatasetPending = "pending"
)

// MaxDatasetTLVLength is the largest operational dataset in bytes.
const MaxDatasetTLVLength = 254

// Timestamp is a dataset timestamp.
type Timestamp struct {
	Seconds       uint64 `json:"Seconds"`
	Ticks         uint16 `json:"Ticks"`
	Authoritative Flag   `json:"Authoritative"`
}

// SecurityPolicy is the security policy TLV of a dataset.
type SecurityPolicy struct {
	RotationTime            uint16 `json:"RotationTime"`
	ObtainNetworkKey        Flag   `json:"ObtainNetworkKey"`
	NativeCommissioning     Flag   `json:"NativeCommissioning"`
	Routers                 Flag   `json:"Routers"`
	ExternalCommissioning   Flag   `json:"ExternalCommissioning"`
	CommercialCommissioning Flag   `json:"CommercialCommissioning"`
	AutonomousEnrollment    Flag   `json:"AutonomousEnrollment"`
	NetworkKeyProvisioning  Flag   `json:"NetworkKeyProvisioning"`
	TobleLink               Flag   `json:"TobleLink"`
	NonCcmRouters           Flag   `json:"NonCcmRouters"`
}

// ActiveDataset is an operational dataset. Absent fields are left unchanged
// by PUT.
type ActiveDataset struct {
	ActiveTimestamp *Timestamp      `json:"ActiveTimestamp,omitempty"`
	NetworkKey      string          `json:"NetworkKey,omitempty" validate:"omitempty,len=32,hexkey"`
	NetworkName     string          `json:"NetworkName,omitempty" validate:"omitempty,max=16"`
	ExtPanID        string          `json:"ExtPanId,omitempty" validate:"omitempty,len=16,hexkey"`
	MeshLocalPrefix string          `json:"MeshLocalPrefix,omitempty" validate:"omitempty,meshprefix"`
	PanID           *uint16         `json:"PanId,omitempty"`
	Channel         *int            `json:"Channel,omitempty" validate:"omitempty,min=11,max=26"`
	PSKc            string          `json:"PSKc,omitempty" validate:"omitempty,len=32,hexkey"`
	SecurityPolicy  *SecurityPolicy `json:"SecurityPolicy,omitempty"`
	ChannelMask     *uint32         `json:"ChannelMask,omitempty"`
}

// PendingDataset schedules an active dataset change after Delay
// milliseconds.
type PendingDataset struct {
	ActiveDataset    *ActiveDataset `json:"ActiveDataset,omitempty"`
	PendingTimestamp *Timestamp     `json:"PendingTimestamp,omitempty"`
	Delay            *uint32        `json:"Delay,omitempty"`
}
